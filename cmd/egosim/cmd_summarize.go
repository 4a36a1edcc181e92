package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/egosim/internal/results"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [FILE...]",
		Short: "Summarize result files or an archive",
		Long: `Pool the estimates of result files (or of an archive) by experiment and
model and print their bias, spread and RMSE against the true effect.

Examples:
  egosim summarize results/linear_results_*.json
  egosim summarize --archive results/archive.db --experiment ego_cluster`,
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, _ := cmd.Flags().GetString("archive")
			experiments, _ := cmd.Flags().GetStringSlice("experiment")

			var bundles []*models.ResultBundle
			for _, path := range args {
				b, err := results.ReadFile(path)
				if err != nil {
					return err
				}
				bundles = append(bundles, b)
			}

			if archivePath != "" {
				archived, err := readArchive(archivePath, experiments)
				if err != nil {
					return err
				}
				bundles = append(bundles, archived...)
			}

			if len(bundles) == 0 {
				return fmt.Errorf("no result bundles given")
			}
			return printSummaries(cmd, results.Merge(bundles))
		},
	}

	cmd.Flags().String("archive", "", "Read bundles from this archive")
	cmd.Flags().StringSlice("experiment", nil, "Limit archive reads to these experiments")
	return cmd
}

func readArchive(path string, experiments []string) ([]*models.ResultBundle, error) {
	a, err := results.OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if len(experiments) == 0 {
		experiments, err = a.Experiments()
		if err != nil {
			return nil, err
		}
	}
	var out []*models.ResultBundle
	for _, name := range experiments {
		bundles, err := a.List(name)
		if err != nil {
			return nil, err
		}
		out = append(out, bundles...)
	}
	return out, nil
}
