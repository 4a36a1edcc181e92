package egocluster

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/egosim/internal/binning"
	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// ErrInvalidThreshold is returned for a loss rate threshold outside [0, 1),
// or when an accepted ego cannot supply the alters the threshold demands.
var ErrInvalidThreshold = errors.New("invalid loss rates threshold")

// ErrNotClustered is returned when treatment is drawn before clustering
var ErrNotClustered = errors.New("clustering has not run")

// Config holds the clustering parameters
type Config struct {
	LossRatesThreshold float64
	NumBins            int
}

// Validate checks the parameter ranges
func (c Config) Validate() error {
	if math.IsNaN(c.LossRatesThreshold) || c.LossRatesThreshold < 0 || c.LossRatesThreshold >= 1 {
		return fmt.Errorf("%w: %v not in [0, 1)", ErrInvalidThreshold, c.LossRatesThreshold)
	}
	if c.NumBins <= 0 {
		return fmt.Errorf("%w: %d", binning.ErrInvalidBinCount, c.NumBins)
	}
	return nil
}

// Cluster is one ego and the alters it owns
type Cluster struct {
	Ego     int
	Alters  []int
	LoopNum int
	Bin     int

	// Claimed counts the alters drawn at acceptance; they lead Alters.
	// Entries after them were attached as orphans.
	Claimed int

	// LossRate is the ego's loss rate at acceptance time
	LossRate float64
}

// Builder runs greedy degree-stratified ego clustering over a graph and then
// draws cluster-level treatment on its node state.
//
// The clusters are immutable once Cluster returns. The node state is mutated
// by every Randomize call; use Fork to give each concurrent task its own.
type Builder struct {
	cfg    Config
	graph  *graph.Graph
	state  *graph.State
	logger *slog.Logger

	clusters  []*Cluster
	byEgo     map[int]*Cluster
	clustered bool

	finalBin      int
	finalLoopNum  int
	orphansJoined int
	unattached    int
}

// NewBuilder validates cfg and g and creates a builder
func NewBuilder(g *graph.Graph, cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Builder{
		cfg:    cfg,
		graph:  g,
		state:  graph.NewState(g),
		logger: logger.Default,
		byEgo:  make(map[int]*Cluster),
	}, nil
}

// SetLogger sets the builder's logger
func (b *Builder) SetLogger(l *slog.Logger) {
	b.logger = l
}

// Cluster runs the greedy selection followed by orphan reattachment.
//
// Bins are scanned in ascending degree order, round after round. In each bin
// random candidates are drawn from the bin's unselected nodes until one has a
// loss rate below the threshold; that ego claims ceil(deg*(1-threshold))
// unselected neighbours as alters. The first bin found without candidates
// halts the whole process, even if later bins still have some.
func (b *Builder) Cluster(rng *utils.RandSource) error {
	if b.clustered {
		return fmt.Errorf("clustering already ran")
	}
	bins, err := binning.Classify(b.graph, b.cfg.NumBins, rng)
	if err != nil {
		return fmt.Errorf("degree binning failed: %w", err)
	}

	n := b.graph.NumNodes()
	selected := make([]bool, n)
	touched := make([]bool, n)

	loopNum := 0
	for {
		halted := false
		for binIdx := range bins {
			ok, err := b.acceptOne(bins[binIdx].Nodes, binIdx, loopNum, selected, touched, rng)
			if err != nil {
				return err
			}
			if !ok {
				b.finalBin = binIdx - 1
				b.finalLoopNum = loopNum
				halted = true
				break
			}
		}
		if halted {
			break
		}
		loopNum++
	}

	egos := make([]int, len(b.clusters))
	for i, c := range b.clusters {
		egos[i] = c.Ego
	}
	b.state.SetEgos(egos)

	b.attachOrphans(selected, touched, rng)
	b.clustered = true

	b.logger.Info("ego clustering finished",
		"egos", len(b.clusters),
		"ego_ratio", b.EgoRatio(),
		"final_bin", b.finalBin,
		"loop_num", b.finalLoopNum,
		"orphans_attached", b.orphansJoined,
		"unattached", b.unattached)
	return nil
}

// acceptOne draws candidates from binNodes until one is accepted as an ego.
// It reports false when the bin runs out of candidates.
func (b *Builder) acceptOne(binNodes []int, binIdx, loopNum int, selected, touched []bool, rng *utils.RandSource) (bool, error) {
	pool := make([]int, 0, len(binNodes))
	for _, v := range binNodes {
		if !selected[v] {
			pool = append(pool, v)
		}
	}

	threshold := b.cfg.LossRatesThreshold
	for len(pool) > 0 {
		i := rng.Intn(len(pool))
		ego := pool[i]
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		nbrs := b.graph.Neighbors(ego)
		if len(nbrs) == 0 {
			return false, fmt.Errorf("%w: %s", graph.ErrDegreeZero, b.graph.ID(ego))
		}
		free := make([]int, 0, len(nbrs))
		for _, v := range nbrs {
			if !selected[v] {
				free = append(free, v)
			}
		}

		lossRate := LossRate(len(free), len(nbrs))
		if lossRate >= threshold {
			continue
		}

		need := AltersNeeded(len(nbrs), threshold)
		if need > len(free) {
			return false, fmt.Errorf("%w: ego %s needs %d alters, %d available",
				ErrInvalidThreshold, b.graph.ID(ego), need, len(free))
		}
		alters := rng.Sample(free, need)
		sort.Ints(alters)

		selected[ego] = true
		for _, v := range alters {
			selected[v] = true
		}
		for _, v := range nbrs {
			touched[v] = true
		}

		c := &Cluster{Ego: ego, Alters: alters, Claimed: len(alters), LoopNum: loopNum, Bin: binIdx, LossRate: lossRate}
		b.clusters = append(b.clusters, c)
		b.byEgo[ego] = c
		b.logger.Debug("ego accepted", "ego", b.graph.ID(ego), "bin", binIdx, "loop_num", loopNum,
			"loss_rate", lossRate, "alters", len(alters))
		return true, nil
	}
	return false, nil
}

// attachOrphans hands every touched but unselected node to one random ego
// neighbour. The node stays unselected.
func (b *Builder) attachOrphans(selected, touched []bool, rng *utils.RandSource) {
	for v := range touched {
		if !touched[v] || selected[v] {
			continue
		}
		var egoNbrs []int
		for _, u := range b.graph.Neighbors(v) {
			if _, ok := b.byEgo[u]; ok {
				egoNbrs = append(egoNbrs, u)
			}
		}
		if len(egoNbrs) == 0 {
			b.unattached++
			continue
		}
		c := b.byEgo[rng.Choice(egoNbrs)]
		c.Alters = append(c.Alters, v)
		b.orphansJoined++
	}
}

// LossRate is the fraction of a node's neighbours already claimed
func LossRate(unselected, degree int) float64 {
	return 1 - float64(unselected)/float64(degree)
}

// AltersNeeded is the number of alters an accepted ego of the given degree claims
func AltersNeeded(degree int, threshold float64) int {
	return int(math.Ceil(float64(degree) * (1 - threshold)))
}
