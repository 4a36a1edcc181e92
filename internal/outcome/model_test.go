package outcome

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		in      string
		want    Model
		wantErr bool
	}{
		{"linear", Linear, false},
		{" Convex ", Convex, false},
		{"quadratic", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownModel) {
					t.Errorf("Expected ErrUnknownModel, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseModel(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestTau(t *testing.T) {
	if got := Linear.Tau(); got != 2.0 {
		t.Errorf("Linear tau = %v, expected exactly 2", got)
	}
	want := 1 + (1 - math.Exp(-3)) - 0
	if got := Convex.Tau(); got != want {
		t.Errorf("Convex tau = %v, expected %v", got, want)
	}
}

func TestConvexExposure(t *testing.T) {
	if ConvexExposure(0) != 0 {
		t.Errorf("f(0) = %v, expected 0", ConvexExposure(0))
	}
	if got := ConvexExposure(1); math.Abs(got-(1-math.Exp(-3))) > 1e-15 {
		t.Errorf("f(1) = %v", got)
	}
	if ConvexExposure(0.5) <= 0.5 {
		t.Error("f should lie above the diagonal on (0, 1)")
	}
}

func TestGenerateLinearMean(t *testing.T) {
	// path 0-1-2 with the middle node treated
	g := graph.FromEdges([][2]int{{0, 1}, {1, 2}})
	s := graph.NewState(g)
	s.Nodes[1].Z = 1

	const reps = 4000
	rng := utils.NewRandSource(31)
	sums := make([]float64, 3)
	for i := 0; i < reps; i++ {
		if err := Linear.Generate(s, rng); err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		for v := range sums {
			sums[v] += s.Nodes[v].Y
		}
	}
	// expected: node 0 -> 1 + 0 + 1, node 1 -> 1 + 1 + 0, node 2 -> 1 + 0 + 1
	want := []float64{2, 2, 2}
	for v := range sums {
		if m := sums[v] / reps; math.Abs(m-want[v]) > 0.1 {
			t.Errorf("node %d mean outcome %f, expected %f", v, m, want[v])
		}
	}
}

func TestGenerateConvexMean(t *testing.T) {
	g := graph.FromEdges([][2]int{{0, 1}, {0, 2}})
	s := graph.NewState(g)
	s.Nodes[1].Z = 1

	const reps = 4000
	rng := utils.NewRandSource(8)
	sum := 0.0
	for i := 0; i < reps; i++ {
		if err := Convex.Generate(s, rng); err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		sum += s.Nodes[0].Y
	}
	want := 1 + ConvexExposure(0.5)
	if m := sum / reps; math.Abs(m-want) > 0.1 {
		t.Errorf("mean outcome %f, expected %f", m, want)
	}
}

func TestGenerateErrors(t *testing.T) {
	b := graph.NewBuilder()
	b.AddEdge("a", "b")
	b.AddNode("c")
	s := graph.NewState(b.Build())
	if err := Linear.Generate(s, utils.NewRandSource(1)); !errors.Is(err, graph.ErrDegreeZero) {
		t.Errorf("Expected ErrDegreeZero, got %v", err)
	}

	g := graph.FromEdges([][2]int{{0, 1}})
	if err := Model("cubic").Generate(graph.NewState(g), utils.NewRandSource(1)); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}
