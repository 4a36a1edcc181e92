package graph

import (
	"fmt"

	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// RingWithChords builds a ring over n nodes plus chords random extra edges.
// Every node has degree at least two, which makes it a convenient synthetic
// graph for smoke runs and tests. n must be at least 3.
func RingWithChords(n, chords int, rng *utils.RandSource) *Graph {
	b := NewBuilder()
	for v := 0; v < n; v++ {
		b.AddNode(fmt.Sprint(v))
	}
	for v := 0; v < n; v++ {
		b.AddEdge(fmt.Sprint(v), fmt.Sprint((v+1)%n))
	}
	for added, attempts := 0, 0; added < chords && attempts < chords*20; attempts++ {
		u, v := rng.Intn(n), rng.Intn(n)
		if b.AddEdge(fmt.Sprint(u), fmt.Sprint(v)) {
			added++
		}
	}
	return b.Build()
}
