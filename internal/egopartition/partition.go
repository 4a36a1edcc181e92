// Package egopartition implements the ego group partition design: egos are
// drawn independently at random and every other node derives its treatment
// from the degree-weighted treatment of its ego neighbours.
package egopartition

import (
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// ErrInvalidEgoRatio is returned for an ego ratio outside (0, 1)
var ErrInvalidEgoRatio = errors.New("ego ratio must be in (0, 1)")

// ErrInvalidThreshold is returned for a non-finite exposure threshold
var ErrInvalidThreshold = errors.New("exposure threshold must be finite")

// Config holds the partition parameters
type Config struct {
	EgoRatio  float64
	Threshold float64
}

// Validate checks the parameter ranges
func (c Config) Validate() error {
	if math.IsNaN(c.EgoRatio) || c.EgoRatio <= 0 || c.EgoRatio >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidEgoRatio, c.EgoRatio)
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.Threshold)
	}
	return nil
}

// Partitioner draws a fresh ego group partition for every call to Partition.
// It keeps no state between calls and may be shared between goroutines as
// long as each uses its own random source.
type Partitioner struct {
	graph *graph.Graph
	cfg   Config
}

// NewPartitioner validates cfg and g and creates a partitioner
func NewPartitioner(g *graph.Graph, cfg Config) (*Partitioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Partitioner{graph: g, cfg: cfg}, nil
}

// Config returns the partition parameters
func (p *Partitioner) Config() Config {
	return p.cfg
}

// Graph returns the partitioned graph
func (p *Partitioner) Graph() *graph.Graph {
	return p.graph
}

// Partition draws a new partition and treatment on a fresh node state.
//
// Each node becomes an ego with probability EgoRatio and each ego is treated
// with probability 1/2. Every other node is then assigned by AssignAlter.
// Finally the treated neighbour ratio of every ego is recomputed.
func (p *Partitioner) Partition(rng *utils.RandSource) (*graph.State, error) {
	n := p.graph.NumNodes()
	state := graph.NewState(p.graph)

	var egos []int
	for v := 0; v < n; v++ {
		if rng.BernoulliBool(p.cfg.EgoRatio) {
			egos = append(egos, v)
		}
	}
	state.SetEgos(egos)

	for _, v := range egos {
		if rng.Float64() < 0.5 {
			state.Nodes[v].Z = 1
		}
	}

	for v := 0; v < n; v++ {
		if state.Nodes[v].IsEgo {
			continue
		}
		if err := AssignAlter(state, v, p.cfg.Threshold, rng); err != nil {
			return nil, err
		}
	}

	if err := state.UpdateTreatedNeighborRatios(egos); err != nil {
		return nil, err
	}
	return state, nil
}

// Draw implements the per-repetition resampling used by the simulation driver
func (p *Partitioner) Draw(rng *utils.RandSource) (*graph.State, error) {
	return p.Partition(rng)
}

// Exposure is the degree-weighted treatment exposure of a node to its ego neighbours
type Exposure struct {
	EgoNeighbors int
	Treated      float64
	Control      float64
}

// ExposureOf sums 1/degree(ego) over the treated and untreated ego neighbours of v
func ExposureOf(state *graph.State, v int) (Exposure, error) {
	g := state.Graph()
	var e Exposure
	for _, u := range g.Neighbors(v) {
		if !state.Nodes[u].IsEgo {
			continue
		}
		d := g.Degree(u)
		if d == 0 {
			return e, fmt.Errorf("%w: %s", graph.ErrDegreeZero, g.ID(u))
		}
		e.EgoNeighbors++
		if state.Nodes[u].Z == 1 {
			e.Treated += 1 / float64(d)
		} else {
			e.Control += 1 / float64(d)
		}
	}
	return e, nil
}

// AssignAlter sets z for the non-ego node v.
//
// Without ego neighbours the node gets a fair coin. Without untreated ego
// neighbours it is treated. Otherwise it is treated iff
// treated/control - 1 exceeds threshold.
func AssignAlter(state *graph.State, v int, threshold float64, rng *utils.RandSource) error {
	e, err := ExposureOf(state, v)
	if err != nil {
		return err
	}
	switch {
	case e.EgoNeighbors == 0:
		state.Nodes[v].Z = rng.Coin()
	case e.Control == 0:
		state.Nodes[v].Z = 1
	default:
		delta := e.Treated/e.Control - 1
		if delta > threshold {
			state.Nodes[v].Z = 1
		} else {
			state.Nodes[v].Z = 0
		}
	}
	return nil
}
