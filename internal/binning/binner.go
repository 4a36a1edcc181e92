// Package binning stratifies graph nodes into bins of roughly equal size by degree.
package binning

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gammazero/deque"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// ErrInvalidBinCount is returned for a non-positive bin count
var ErrInvalidBinCount = errors.New("number of bins must be positive")

// Bin is one degree stratum
type Bin struct {
	// Degrees lists the degree values that contributed nodes, ascending
	Degrees []int
	// Nodes lists member nodes in ascending index order
	Nodes []int
	Count int
}

// bucket is the not yet binned remainder of one degree value
type bucket struct {
	degree int
	nodes  []int
}

// Classify splits the nodes of g into numBins bins by ascending degree.
//
// Every bin is filled up to floor(N/numBins) nodes. A degree bucket that
// does not fit is split: a uniformly random subset fills the bin and the
// rest is requeued at the front for the next bin. Bins may come up short
// once degrees run out, and up to N mod numBins of the highest-degree nodes
// may stay unbinned.
func Classify(g *graph.Graph, numBins int, rng *utils.RandSource) ([]Bin, error) {
	if numBins <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBinCount, numBins)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	queue := degreeQueue(g)
	target := g.NumNodes() / numBins

	bins := make([]Bin, numBins)
	for i := range bins {
		bin := &bins[i]
		for bin.Count < target && queue.Len() > 0 {
			b := queue.PopFront()
			room := target - bin.Count
			if len(b.nodes) <= room {
				bin.add(b.degree, b.nodes)
				continue
			}
			picked, rest := rng.Split(b.nodes, room)
			bin.add(b.degree, picked)
			queue.PushFront(bucket{degree: b.degree, nodes: rest})
		}
		sort.Ints(bin.Nodes)
	}
	return bins, nil
}

func (b *Bin) add(degree int, nodes []int) {
	if len(b.Degrees) == 0 || b.Degrees[len(b.Degrees)-1] != degree {
		b.Degrees = append(b.Degrees, degree)
	}
	b.Nodes = append(b.Nodes, nodes...)
	b.Count += len(nodes)
}

// degreeQueue groups nodes by degree, ascending
func degreeQueue(g *graph.Graph) *deque.Deque[bucket] {
	byDegree := make(map[int][]int)
	for v := 0; v < g.NumNodes(); v++ {
		d := g.Degree(v)
		byDegree[d] = append(byDegree[d], v)
	}
	degrees := make([]int, 0, len(byDegree))
	for d := range byDegree {
		degrees = append(degrees, d)
	}
	sort.Ints(degrees)

	var q deque.Deque[bucket]
	for _, d := range degrees {
		q.PushBack(bucket{degree: d, nodes: byDegree[d]})
	}
	return &q
}

// Unbinned returns the nodes of g that belong to no bin, ascending
func Unbinned(g *graph.Graph, bins []Bin) []int {
	binned := make([]bool, g.NumNodes())
	for _, b := range bins {
		for _, v := range b.Nodes {
			binned[v] = true
		}
	}
	var out []int
	for v, ok := range binned {
		if !ok {
			out = append(out, v)
		}
	}
	return out
}
