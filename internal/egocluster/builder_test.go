package egocluster

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/egosim/internal/binning"
	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

func newClustered(t *testing.T, g *graph.Graph, cfg Config, seed int64) *Builder {
	t.Helper()
	b, err := NewBuilder(g, cfg)
	if err != nil {
		t.Fatalf("NewBuilder error: %v", err)
	}
	b.SetLogger(logger.New("error", io.Discard))
	if err := b.Cluster(utils.NewRandSource(seed)); err != nil {
		t.Fatalf("Cluster error: %v", err)
	}
	return b
}

func TestNewBuilderValidation(t *testing.T) {
	g := graph.FromEdges([][2]int{{0, 1}, {1, 2}})
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"negative threshold", Config{LossRatesThreshold: -0.1, NumBins: 1}, ErrInvalidThreshold},
		{"threshold one", Config{LossRatesThreshold: 1, NumBins: 1}, ErrInvalidThreshold},
		{"NaN threshold", Config{LossRatesThreshold: math.NaN(), NumBins: 1}, ErrInvalidThreshold},
		{"zero bins", Config{LossRatesThreshold: 0.5, NumBins: 0}, binning.ErrInvalidBinCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBuilder(g, tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	gb := graph.NewBuilder()
	gb.AddEdge("a", "b")
	gb.AddNode("c")
	if _, err := NewBuilder(gb.Build(), Config{LossRatesThreshold: 0.5, NumBins: 1}); !errors.Is(err, graph.ErrDegreeZero) {
		t.Errorf("Expected ErrDegreeZero, got %v", err)
	}
}

func TestFourCycleSingleEgo(t *testing.T) {
	g := graph.FromEdges([][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}})

	for seed := int64(1); seed <= 20; seed++ {
		b := newClustered(t, g, Config{LossRatesThreshold: 0.5, NumBins: 1}, seed)

		clusters := b.Clusters()
		if len(clusters) != 1 {
			t.Fatalf("seed %d: expected exactly one ego, got %d", seed, len(clusters))
		}
		c := clusters[0]
		if c.LoopNum != 0 || c.Bin != 0 {
			t.Errorf("seed %d: expected loop 0 bin 0, got loop %d bin %d", seed, c.LoopNum, c.Bin)
		}
		if c.LossRate != 0 {
			t.Errorf("seed %d: expected loss rate 0, got %f", seed, c.LossRate)
		}
		// ceil(2 * 0.5) = 1 claimed alter, the other neighbour joins as an orphan
		if c.Claimed != 1 {
			t.Errorf("seed %d: expected 1 claimed alter, got %d", seed, c.Claimed)
		}
		nbrs := g.Neighbors(c.Ego)
		if len(c.Alters) != 2 {
			t.Fatalf("seed %d: expected alters to be both neighbours, got %v", seed, c.Alters)
		}
		for _, v := range c.Alters {
			if v != nbrs[0] && v != nbrs[1] {
				t.Errorf("seed %d: alter %d is not a neighbour of ego %d", seed, v, c.Ego)
			}
		}
		if c.Alters[0] == c.Alters[1] {
			t.Errorf("seed %d: duplicate alter %v", seed, c.Alters)
		}

		// the second round finds two candidates with loss rate 0.5 and halts
		if b.FinalBin() != -1 || b.FinalLoopNum() != 1 {
			t.Errorf("seed %d: expected final bin -1 loop 1, got %d/%d", seed, b.FinalBin(), b.FinalLoopNum())
		}
		s := b.Summary()
		if s.Egos != 1 || s.OrphansAttached != 1 || s.Unattached != 0 || s.Alters != 2 {
			t.Errorf("seed %d: unexpected summary %+v", seed, s)
		}
		if s.EgoRatio != 0.25 {
			t.Errorf("seed %d: expected ego ratio 0.25, got %f", seed, s.EgoRatio)
		}
	}
}

func TestClusteringInvariants(t *testing.T) {
	tests := []struct {
		name      string
		n, chords int
		cfg       Config
	}{
		{"sparse", 200, 100, Config{LossRatesThreshold: 0.5, NumBins: 4}},
		{"dense", 150, 600, Config{LossRatesThreshold: 0.75, NumBins: 5}},
		{"low threshold", 120, 300, Config{LossRatesThreshold: 0.2, NumBins: 3}},
		{"single bin", 100, 150, Config{LossRatesThreshold: 0.6, NumBins: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.RingWithChords(tt.n, tt.chords, utils.NewRandSource(99))
			b := newClustered(t, g, tt.cfg, 7)
			clusters := b.Clusters()
			if len(clusters) == 0 {
				t.Fatal("Expected at least one ego")
			}

			// one ego per bin per full round, plus the bins before the halting one
			want := b.FinalLoopNum()*tt.cfg.NumBins + b.FinalBin() + 1
			if len(clusters) != want {
				t.Errorf("Expected %d egos from final loop/bin, got %d", want, len(clusters))
			}

			owner := make(map[int]int)
			egos := make(map[int]bool)
			for _, c := range clusters {
				egos[c.Ego] = true
			}

			selected := make(map[int]bool)
			for _, c := range clusters {
				// replay the acceptance-time snapshot
				free := 0
				for _, v := range g.Neighbors(c.Ego) {
					if !selected[v] {
						free++
					}
				}
				lr := LossRate(free, g.Degree(c.Ego))
				if !(lr < tt.cfg.LossRatesThreshold) {
					t.Errorf("ego %d accepted with loss rate %f >= %f", c.Ego, lr, tt.cfg.LossRatesThreshold)
				}
				if lr != c.LossRate {
					t.Errorf("ego %d recorded loss rate %f, replay gives %f", c.Ego, c.LossRate, lr)
				}
				if c.Claimed != AltersNeeded(g.Degree(c.Ego), tt.cfg.LossRatesThreshold) {
					t.Errorf("ego %d claimed %d alters, expected %d", c.Ego, c.Claimed,
						AltersNeeded(g.Degree(c.Ego), tt.cfg.LossRatesThreshold))
				}
				if selected[c.Ego] {
					t.Errorf("ego %d was already selected", c.Ego)
				}
				selected[c.Ego] = true
				for _, v := range c.Alters[:c.Claimed] {
					if selected[v] {
						t.Errorf("claimed alter %d of ego %d was already selected", v, c.Ego)
					}
					selected[v] = true
				}

				isNbr := make(map[int]bool)
				for _, v := range g.Neighbors(c.Ego) {
					isNbr[v] = true
				}
				for _, v := range c.Alters {
					if v == c.Ego {
						t.Errorf("ego %d is its own alter", c.Ego)
					}
					if !isNbr[v] {
						t.Errorf("alter %d is not a neighbour of ego %d", v, c.Ego)
					}
					if egos[v] {
						t.Errorf("ego %d is an alter of ego %d", v, c.Ego)
					}
					if prev, dup := owner[v]; dup {
						t.Errorf("node %d is an alter of egos %d and %d", v, prev, c.Ego)
					}
					owner[v] = c.Ego
				}
			}

			for _, c := range clusters {
				for _, v := range c.Alters[c.Claimed:] {
					if selected[v] {
						t.Errorf("orphan %d of ego %d was selected", v, c.Ego)
					}
				}
			}

			stateEgos := b.State().Egos()
			if len(stateEgos) != len(clusters) {
				t.Errorf("state marks %d egos, expected %d", len(stateEgos), len(clusters))
			}
			for _, v := range stateEgos {
				if !egos[v] {
					t.Errorf("node %d flagged as ego without a cluster", v)
				}
			}
		})
	}
}

func TestZeroThresholdAcceptsNothing(t *testing.T) {
	g := graph.RingWithChords(30, 20, utils.NewRandSource(5))
	b := newClustered(t, g, Config{LossRatesThreshold: 0, NumBins: 2}, 3)
	if len(b.Clusters()) != 0 {
		t.Errorf("Expected no egos with a zero threshold, got %d", len(b.Clusters()))
	}
	if b.FinalBin() != -1 || b.FinalLoopNum() != 0 {
		t.Errorf("Expected halt at bin -1 loop 0, got %d/%d", b.FinalBin(), b.FinalLoopNum())
	}
}

func TestClusterTwice(t *testing.T) {
	g := graph.FromEdges([][2]int{{0, 1}, {1, 2}, {2, 0}})
	b := newClustered(t, g, Config{LossRatesThreshold: 0.5, NumBins: 1}, 1)
	if err := b.Cluster(utils.NewRandSource(2)); err == nil {
		t.Error("Expected second Cluster call to fail")
	}
}

func TestClusteringDeterministicForSeed(t *testing.T) {
	g := graph.RingWithChords(100, 200, utils.NewRandSource(1))
	cfg := Config{LossRatesThreshold: 0.5, NumBins: 4}
	a := newClustered(t, g, cfg, 42).Clusters()
	b := newClustered(t, g, cfg, 42).Clusters()
	if len(a) != len(b) {
		t.Fatalf("cluster counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Ego != b[i].Ego || len(a[i].Alters) != len(b[i].Alters) {
			t.Fatalf("cluster %d differs between runs with the same seed", i)
		}
	}
}
