package simd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/egosim/internal/metrics"
	"github.com/GoSim-25-26J-441/egosim/internal/results"
	"github.com/GoSim-25-26J-441/egosim/internal/simulation"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	writer   results.Writer
	notifier *Notifier
	metrics  *DaemonMetrics

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
}

func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:   store,
		cancels: make(map[string]context.CancelFunc),
		done:    make(map[string]chan struct{}),
	}
}

// SetWriter persists every bundle of every run through w in addition to the store
func (e *RunExecutor) SetWriter(w results.Writer) {
	e.writer = w
}

// SetNotifier enables completion callbacks for runs that request one
func (e *RunExecutor) SetNotifier(n *Notifier) {
	e.notifier = n
}

// SetMetrics records the task metrics of every finished run in m
func (e *RunExecutor) SetMetrics(m *DaemonMetrics) {
	e.metrics = m
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	switch {
	case rec.Run.Status == models.RunStatusRunning:
		return rec, nil
	case rec.Run.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.done[runID] = done
	e.mu.Unlock()

	go e.runExperiments(ctx, rec, done)
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	e.notify(updated)
	return updated, nil
}

// Wait blocks until the run started for runID has finished or ctx is done
func (e *RunExecutor) Wait(ctx context.Context, runID string) error {
	e.mu.Lock()
	done, ok := e.done[runID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runExperiments(ctx context.Context, rec *RunRecord, done chan struct{}) {
	runID := rec.Run.ID
	defer close(done)
	defer e.cleanup(runID)

	log := logger.With("run_id", runID)
	sink := simulation.SinkFunc(func(ctx context.Context, b *models.ResultBundle) error {
		if err := e.store.AddResult(runID, b, results.Summarize(b)); err != nil {
			return err
		}
		if e.writer != nil {
			return e.writer.Write(ctx, b)
		}
		return nil
	})

	collector := metrics.NewCollector()
	if err := e.store.SetCollector(runID, collector); err != nil {
		log.Error("failed to attach collector", "error", err)
	}

	runner := simulation.NewRunner(rec.cfg, sink)
	runner.SetLogger(log)
	runner.SetCollector(collector)

	log.Info("starting experiments", "experiments", len(rec.cfg.Experiments), "seed", runner.Seed())
	err := runner.Prepare(ctx)
	if err == nil {
		if c := runner.Clustering(); c != nil {
			if setErr := e.store.SetClustering(runID, len(c.Clusters()), c.EgoRatio()); setErr != nil {
				log.Error("failed to record clustering", "error", setErr)
			}
		}
		_, err = runner.Run(ctx)
	}
	if e.metrics != nil {
		e.metrics.ObserveRun(collector)
	}

	var final *RunRecord
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		log.Info("run cancelled")
		return
	case err != nil:
		log.Error("run failed", "error", err)
		final, err = e.store.SetStatus(runID, models.RunStatusFailed, err.Error())
	default:
		final, err = e.store.SetStatus(runID, models.RunStatusCompleted, "")
		if err == nil {
			log.Info("run completed", "bundles", len(final.Run.Results))
		}
	}
	if errors.Is(err, ErrRunTerminal) {
		// stopped between the last task and here
		log.Debug("run already terminal", "error", err)
		return
	}
	if err != nil {
		log.Error("failed to set final status", "error", err)
		return
	}
	e.notify(final)
}

func (e *RunExecutor) notify(rec *RunRecord) {
	if e.notifier == nil || rec.Input.CallbackURL == "" {
		return
	}
	e.notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, rec)
}
