// Package outcome generates potential outcomes under peer interference and
// estimates the global average treatment effect from them.
package outcome

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// ErrUnknownModel is returned for an unrecognised outcome model name
var ErrUnknownModel = errors.New("unknown outcome model")

// Model names an outcome generating process
type Model string

const (
	// Linear: y = 1 + z + mean(z of neighbours) + noise
	Linear Model = "linear"
	// Convex: y = 1 + z + f(mean(z of neighbours)) + noise, f(x) = 1 - exp(-3x)
	Convex Model = "convex"
)

// Models lists every supported model
var Models = []Model{Linear, Convex}

// ParseModel maps a name to a Model
func ParseModel(name string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(name))) {
	case Linear:
		return Linear, nil
	case Convex:
		return Convex, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
}

// ConvexExposure is the saturating exposure response 1 - exp(-3x)
func ConvexExposure(x float64) float64 {
	return 1 - math.Exp(-3*x)
}

// Exposure maps the treated neighbour fraction to the model's peer effect
func (m Model) Exposure(x float64) float64 {
	if m == Convex {
		return ConvexExposure(x)
	}
	return x
}

// Tau returns the true global average treatment effect under the model:
// the outcome difference between treating everyone and treating no one.
func (m Model) Tau() float64 {
	return 1 + m.Exposure(1) - m.Exposure(0)
}

// Validate reports whether m is a supported model
func (m Model) Validate() error {
	if m != Linear && m != Convex {
		return fmt.Errorf("%w: %q", ErrUnknownModel, string(m))
	}
	return nil
}

// Generate writes a fresh outcome y to every node of state from the current
// treatment, drawing independent N(0, 1) noise per node.
func (m Model) Generate(state *graph.State, rng *utils.RandSource) error {
	if err := m.Validate(); err != nil {
		return err
	}
	for v := range state.Nodes {
		frac, err := state.NeighborTreatedFraction(v)
		if err != nil {
			return err
		}
		z := float64(state.Nodes[v].Z)
		state.Nodes[v].Y = 1 + z + m.Exposure(frac) + rng.NormFloat64(0, 1)
	}
	return nil
}
