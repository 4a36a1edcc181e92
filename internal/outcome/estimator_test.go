package outcome

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
)

func TestEstimate(t *testing.T) {
	g := graph.FromEdges([][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}})
	s := graph.NewState(g)
	s.SetEgos([]int{0, 1, 2, 3})
	// treated egos 0, 1; control egos 2, 3; node 4 is not an ego
	outcomes := []float64{3, 5, 1, 2, 100}
	for v, y := range outcomes {
		s.Nodes[v].Y = y
	}
	s.Nodes[0].Z = 1
	s.Nodes[1].Z = 1
	s.Nodes[4].Z = 1

	est, err := Estimate(s)
	if err != nil {
		t.Fatalf("Estimate error: %v", err)
	}
	// (3+5)/2 - (1+2)/2 = 2.5
	if math.Abs(est-2.5) > 1e-12 {
		t.Errorf("Estimate = %f, expected 2.5", est)
	}
}

func TestEstimateDegenerateSample(t *testing.T) {
	g := graph.FromEdges([][2]int{{0, 1}, {1, 2}, {2, 0}})

	tests := []struct {
		name string
		egos []int
		z    []uint8
	}{
		{"all treated", []int{0, 1}, []uint8{1, 1, 0}},
		{"all control", []int{0, 1, 2}, []uint8{0, 0, 0}},
		{"no egos", nil, []uint8{1, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := graph.NewState(g)
			s.SetEgos(tt.egos)
			for v, z := range tt.z {
				s.Nodes[v].Z = z
			}
			if _, err := Estimate(s); !errors.Is(err, ErrDegenerateSample) {
				t.Errorf("Expected ErrDegenerateSample, got %v", err)
			}
		})
	}
}
