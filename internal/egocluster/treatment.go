package egocluster

import (
	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// Randomize redraws treatment on the builder's node state: every z is reset,
// each cluster is treated as a whole with probability 1/2, and the treated
// neighbour ratio of every ego is recomputed over its raw neighbourhood.
func (b *Builder) Randomize(rng *utils.RandSource) error {
	if !b.clustered {
		return ErrNotClustered
	}
	b.state.ResetTreatment()
	egos := make([]int, len(b.clusters))
	for i, c := range b.clusters {
		egos[i] = c.Ego
		if rng.Coin() == 0 {
			continue
		}
		b.state.Nodes[c.Ego].Z = 1
		for _, v := range c.Alters {
			b.state.Nodes[v].Z = 1
		}
	}
	return b.state.UpdateTreatedNeighborRatios(egos)
}

// Draw redraws treatment in place and returns the builder's state
func (b *Builder) Draw(rng *utils.RandSource) (*graph.State, error) {
	if err := b.Randomize(rng); err != nil {
		return nil, err
	}
	return b.state, nil
}

// Fork returns a builder sharing the graph and clusters but owning a copy of
// the node state, so that it can be randomized concurrently with b.
func (b *Builder) Fork() *Builder {
	f := *b
	f.state = b.state.Clone()
	return &f
}

// State returns the node state mutated by Randomize
func (b *Builder) State() *graph.State {
	return b.state
}

// Graph returns the clustered graph
func (b *Builder) Graph() *graph.Graph {
	return b.graph
}

// Config returns the clustering parameters
func (b *Builder) Config() Config {
	return b.cfg
}

// Clusters returns the accepted clusters in acceptance order
func (b *Builder) Clusters() []*Cluster {
	return b.clusters
}

// ClusterOf returns the cluster led by ego
func (b *Builder) ClusterOf(ego int) (*Cluster, bool) {
	c, ok := b.byEgo[ego]
	return c, ok
}

// EgoRatio is the number of egos over the number of nodes
func (b *Builder) EgoRatio() float64 {
	n := b.graph.NumNodes()
	if n == 0 {
		return 0
	}
	return float64(len(b.clusters)) / float64(n)
}

// FinalBin is the index preceding the bin whose exhaustion halted clustering
func (b *Builder) FinalBin() int {
	return b.finalBin
}

// FinalLoopNum is the round in which clustering halted
func (b *Builder) FinalLoopNum() int {
	return b.finalLoopNum
}

// Summary describes a finished clustering
type Summary struct {
	Nodes           int     `json:"nodes" yaml:"nodes"`
	Egos            int     `json:"egos" yaml:"egos"`
	EgoRatio        float64 `json:"ego_ratio" yaml:"ego_ratio"`
	Alters          int     `json:"alters" yaml:"alters"`
	OrphansAttached int     `json:"orphans_attached" yaml:"orphans_attached"`
	Unattached      int     `json:"unattached" yaml:"unattached"`
	FinalBin        int     `json:"final_bin" yaml:"final_bin"`
	FinalLoopNum    int     `json:"final_loop_num" yaml:"final_loop_num"`
}

// Summary reports the clustering outcome
func (b *Builder) Summary() Summary {
	alters := 0
	for _, c := range b.clusters {
		alters += len(c.Alters)
	}
	return Summary{
		Nodes:           b.graph.NumNodes(),
		Egos:            len(b.clusters),
		EgoRatio:        b.EgoRatio(),
		Alters:          alters,
		OrphansAttached: b.orphansJoined,
		Unattached:      b.unattached,
		FinalBin:        b.finalBin,
		FinalLoopNum:    b.finalLoopNum,
	}
}
