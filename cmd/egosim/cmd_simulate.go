package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/egosim/internal/metrics"
	"github.com/GoSim-25-26J-441/egosim/internal/results"
	"github.com/GoSim-25-26J-441/egosim/internal/simulation"
	"github.com/GoSim-25-26J-441/egosim/pkg/config"
	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the experiments of a configuration file",
		Long: `Run every experiment of a configuration file, write one result file per
experiment, model and batch, and print a summary of the estimates.

Examples:
  egosim simulate --config config/experiment.yaml
  egosim simulate --config config/synthetic.yaml --workers 8 --out /tmp/results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := applySimulateOverrides(cmd, cfg); err != nil {
				return err
			}

			w, err := results.NewFileWriter(cfg.Output.Dir, cfg.Output.Format)
			if err != nil {
				return err
			}
			if cfg.Output.Archive != "" {
				archive, err := results.OpenArchive(cfg.Output.Archive)
				if err != nil {
					return err
				}
				defer archive.Close()
				w.SetArchive(archive)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			collector := metrics.NewCollector()
			runner := simulation.NewRunner(cfg, w)
			runner.SetLogger(logger.Component("simulation"))
			runner.SetCollector(collector)
			bundles, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			p := collector.Progress()
			logger.Info("results written",
				"files", len(w.Paths()),
				"dir", cfg.Output.Dir,
				"tasks", p.TasksDone,
				"repetitions", p.Repetitions,
				"elapsed_ms", p.ElapsedMs,
				"task_p95_ms", p.TaskP95Ms)

			return printSummaries(cmd, results.Merge(bundles))
		},
	}

	cmd.Flags().String("config", "config/experiment.yaml", "Experiment configuration file")
	cmd.Flags().Int("workers", -1, "Override the number of parallel tasks (0 uses every CPU)")
	cmd.Flags().Int64("seed", 0, "Override the base random seed")
	cmd.Flags().String("out", "", "Override the results directory")
	cmd.Flags().String("format", "", "Override the result encoding (json, msgpack)")
	return cmd
}

func applySimulateOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("workers") {
		workers, _ := cmd.Flags().GetInt("workers")
		if workers < 0 {
			return fmt.Errorf("--workers cannot be negative")
		}
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		cfg.Output.Dir = out
	}
	if format, _ := cmd.Flags().GetString("format"); format != "" {
		cfg.Output.Format = format
	}
	return nil
}
