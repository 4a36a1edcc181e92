// Package simulation runs repeated randomized experiments on a network and
// collects GATE estimates for each design and outcome model.
package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/internal/outcome"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// Design produces a freshly randomized node state for one repetition.
// The returned state is only valid until the next call to Draw.
type Design interface {
	Draw(rng *utils.RandSource) (*graph.State, error)
}

// Result holds the estimates of one simulation and the true effect of its model
type Result struct {
	Estimates []float64
	Tau       float64
}

// Simulate runs repetitions rounds of resample, generate and estimate.
// Any error aborts the whole simulation; cancellation is checked between rounds.
func Simulate(ctx context.Context, d Design, repetitions int, model outcome.Model, rng *utils.RandSource) (*Result, error) {
	return simulate(ctx, d, repetitions, model, rng, logger.Default)
}

func simulate(ctx context.Context, d Design, repetitions int, model outcome.Model, rng *utils.RandSource, log *slog.Logger) (*Result, error) {
	if repetitions <= 0 {
		return nil, fmt.Errorf("repetitions must be positive, got %d", repetitions)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Estimates: make([]float64, 0, repetitions),
		Tau:       model.Tau(),
	}
	for rep := 0; rep < repetitions; rep++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, err := d.Draw(rng)
		if err != nil {
			return nil, fmt.Errorf("repetition %d: %w", rep, err)
		}
		log.Debug("Treatment drawn",
			"repetition", rep,
			"treated", state.TreatedCount(),
			"mean_treated_neighbor_ratio", state.MeanTreatedNeighborRatio())

		if err := model.Generate(state, rng); err != nil {
			return nil, fmt.Errorf("repetition %d: %w", rep, err)
		}
		est, err := outcome.Estimate(state)
		if err != nil {
			return nil, fmt.Errorf("repetition %d: %w", rep, err)
		}
		res.Estimates = append(res.Estimates, est)
	}
	return res, nil
}
