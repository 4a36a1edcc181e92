package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/egosim/internal/egocluster"
	"github.com/GoSim-25-26J-441/egosim/internal/egopartition"
	"github.com/GoSim-25-26J-441/egosim/internal/graph"
	"github.com/GoSim-25-26J-441/egosim/internal/metrics"
	"github.com/GoSim-25-26J-441/egosim/internal/outcome"
	"github.com/GoSim-25-26J-441/egosim/pkg/config"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// Random streams derived from the base seed. Tasks use streams 1..n.
const (
	graphStream      = -1
	clusteringStream = 0
)

// Sink receives finished result bundles. Write may be called from several
// goroutines at once.
type Sink interface {
	Write(ctx context.Context, b *models.ResultBundle) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, b *models.ResultBundle) error

// Write calls f(ctx, b)
func (f SinkFunc) Write(ctx context.Context, b *models.ResultBundle) error {
	return f(ctx, b)
}

// ResolveSeed returns seed, or a time-derived seed when seed is zero
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return utils.DeriveSeed(time.Now().UnixNano(), 0)
}

// LoadGraph reads or generates the graph described by src. Synthetic graphs
// are generated from a stream of seed.
func LoadGraph(src config.GraphSource, seed int64) (*graph.Graph, error) {
	if src.Synthetic != nil {
		rng := utils.NewRandSource(utils.DeriveSeed(seed, graphStream))
		return graph.RingWithChords(src.Synthetic.Nodes, src.Synthetic.Chords, rng), nil
	}
	return graph.LoadEdgeList(src.Path, src.HeaderLines())
}

// task is one independent simulation: a batch of repetitions of one
// experiment under one outcome model
type task struct {
	stream    int
	exp       config.Experiment
	model     outcome.Model
	batch     int
	egoRatio  float64
	newDesign func() Design
}

// Runner executes every experiment of a configuration in parallel tasks
type Runner struct {
	cfg       *config.Config
	sink      Sink
	logger    *slog.Logger
	seed      int64
	collector *metrics.Collector

	prepareOnce sync.Once
	prepareErr  error
	graph       *graph.Graph
	clustering  *egocluster.Builder
}

// NewRunner creates a runner for cfg. sink may be nil.
func NewRunner(cfg *config.Config, sink Sink) *Runner {
	return &Runner{
		cfg:    cfg,
		sink:   sink,
		logger: logger.Default,
		seed:   ResolveSeed(cfg.Seed),
	}
}

// SetLogger sets the runner's logger
func (r *Runner) SetLogger(l *slog.Logger) {
	r.logger = l
}

// SetCollector records task progress into c
func (r *Runner) SetCollector(c *metrics.Collector) {
	r.collector = c
}

// SetGraph injects an already loaded graph. It must be called before Prepare.
func (r *Runner) SetGraph(g *graph.Graph) {
	r.graph = g
}

// Seed returns the base seed every random stream is derived from
func (r *Runner) Seed() int64 {
	return r.seed
}

// Graph returns the loaded graph, nil before Prepare
func (r *Runner) Graph() *graph.Graph {
	return r.graph
}

// Clustering returns the ego clustering, nil when no experiment needs it
func (r *Runner) Clustering() *egocluster.Builder {
	return r.clustering
}

// Prepare loads the graph and builds the ego clustering once
func (r *Runner) Prepare(ctx context.Context) error {
	r.prepareOnce.Do(func() {
		r.prepareErr = r.prepare(ctx)
	})
	return r.prepareErr
}

func (r *Runner) prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.graph == nil {
		g, err := LoadGraph(r.cfg.Graph, r.seed)
		if err != nil {
			return fmt.Errorf("failed to load graph: %w", err)
		}
		r.graph = g
	}
	r.logger.Info("Graph loaded",
		"nodes", r.graph.NumNodes(),
		"edges", r.graph.NumEdges(),
		"seed", r.seed)

	if !r.cfg.NeedsClustering() {
		return nil
	}

	start := time.Now()
	b, err := BuildClustering(r.graph, r.cfg.Clustering, r.seed, r.logger)
	if err != nil {
		return err
	}
	r.clustering = b
	r.logger.Info("Ego clustering built",
		"egos", len(b.Clusters()),
		"ego_ratio", b.EgoRatio(),
		"elapsed", time.Since(start))
	return nil
}

// BuildClustering runs ego clustering on g with the clustering stream of seed
func BuildClustering(g *graph.Graph, c config.Clustering, seed int64, log *slog.Logger) (*egocluster.Builder, error) {
	b, err := egocluster.NewBuilder(g, egocluster.Config{
		LossRatesThreshold: c.LossRatesThreshold,
		NumBins:            c.NumBins,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ego clustering: %w", err)
	}
	if log != nil {
		b.SetLogger(log)
	}
	if err := b.Cluster(utils.NewRandSource(utils.DeriveSeed(seed, clusteringStream))); err != nil {
		return nil, fmt.Errorf("ego clustering failed: %w", err)
	}
	return b, nil
}

// plan enumerates the tasks of every experiment in configuration order
func (r *Runner) plan() ([]task, error) {
	var tasks []task
	for _, exp := range r.cfg.Experiments {
		var (
			newDesign func() Design
			egoRatio  float64
		)
		switch exp.Design {
		case models.DesignEgoCluster:
			if r.clustering == nil {
				return nil, fmt.Errorf("experiment %s: %w", exp.Name, egocluster.ErrNotClustered)
			}
			clustering := r.clustering
			egoRatio = clustering.EgoRatio()
			newDesign = func() Design { return clustering.Fork() }
		case models.DesignEgoGroupPartition:
			egoRatio = exp.EgoRatio
			if egoRatio == 0 {
				if r.clustering == nil {
					return nil, fmt.Errorf("experiment %s: %w", exp.Name, egocluster.ErrNotClustered)
				}
				egoRatio = r.clustering.EgoRatio()
			}
			p, err := egopartition.NewPartitioner(r.graph, egopartition.Config{
				EgoRatio:  egoRatio,
				Threshold: exp.Threshold,
			})
			if err != nil {
				return nil, fmt.Errorf("experiment %s: %w", exp.Name, err)
			}
			newDesign = func() Design { return p }
		default:
			return nil, fmt.Errorf("experiment %s: unknown design %q", exp.Name, exp.Design)
		}

		for _, name := range exp.Models {
			model, err := outcome.ParseModel(name)
			if err != nil {
				return nil, fmt.Errorf("experiment %s: %w", exp.Name, err)
			}
			for batch := 0; batch < exp.Batches; batch++ {
				tasks = append(tasks, task{
					stream:    len(tasks) + 1,
					exp:       exp,
					model:     model,
					batch:     batch,
					egoRatio:  egoRatio,
					newDesign: newDesign,
				})
			}
		}
	}
	return tasks, nil
}

// Run prepares the runner and executes every task, at most Workers at a time.
// Bundles are returned in task order. The first failing task cancels the rest.
func (r *Runner) Run(ctx context.Context) ([]*models.ResultBundle, error) {
	if err := r.Prepare(ctx); err != nil {
		return nil, err
	}
	tasks, err := r.plan()
	if err != nil {
		return nil, err
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	r.logger.Info("Running experiments",
		"experiments", len(r.cfg.Experiments),
		"tasks", len(tasks),
		"workers", workers)

	if r.collector != nil {
		r.collector.Start(len(tasks))
		defer r.collector.Stop()
	}

	bundles := make([]*models.ResultBundle, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range tasks {
		i, t := i, tasks[i]
		g.Go(func() error {
			b, err := r.runTask(gctx, t)
			if err != nil {
				return err
			}
			bundles[i] = b
			if r.sink != nil {
				if err := r.sink.Write(gctx, b); err != nil {
					return fmt.Errorf("experiment %s: failed to write results: %w", t.exp.Name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *Runner) runTask(ctx context.Context, t task) (*models.ResultBundle, error) {
	seed := utils.DeriveSeed(r.seed, t.stream)
	log := r.logger.With(
		"experiment", t.exp.Name,
		"model", string(t.model),
		"batch", t.batch)
	start := time.Now()
	log.Debug("Task started", "seed", seed)

	res, err := simulate(ctx, t.newDesign(), t.exp.Repetitions, t.model, utils.NewRandSource(seed), log)
	if err != nil {
		return nil, fmt.Errorf("experiment %s model %s batch %d: %w", t.exp.Name, t.model, t.batch, err)
	}

	b := &models.ResultBundle{
		Name:        t.exp.Name,
		Design:      t.exp.Design,
		Model:       string(t.model),
		Est:         res.Estimates,
		Tau:         res.Tau,
		Seed:        seed,
		Batch:       t.batch,
		Repetitions: t.exp.Repetitions,
		EgoRatio:    t.egoRatio,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if t.exp.Design == models.DesignEgoGroupPartition {
		b.Threshold = t.exp.Threshold
	}
	if r.collector != nil {
		r.collector.TaskFinished(t.exp.Name, string(t.model), len(res.Estimates), time.Since(start))
	}
	log.Info("Task finished",
		"repetitions", len(res.Estimates),
		"mean_estimate", utils.Mean(res.Estimates),
		"tau", res.Tau,
		"elapsed", time.Since(start))
	return b, nil
}
