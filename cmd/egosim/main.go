package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "egosim",
		Short: "Ego-network causal inference simulations",
		Long: `egosim measures how well ego-centric experimental designs recover the
global average treatment effect on a social network.

It builds ego clusters on a graph, simulates outcomes under linear and
convex interference models and reports difference-in-means estimates
against the true effect.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			logger.SetDefault(logger.NewFormat(format, level, cmd.ErrOrStderr()))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newClusterCmd(),
		newSimulateCmd(),
		newSummarizeCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "egosim version %s\n", version)
			}
		},
	}
}

// printSummaries writes one row per summary, or a JSON array with --json
func printSummaries(cmd *cobra.Command, summaries []models.Summary) error {
	out := cmd.OutOrStdout()
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	return writeSummaryTable(out, summaries)
}

func writeSummaryTable(out io.Writer, summaries []models.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPERIMENT\tDESIGN\tMODEL\tN\tTAU\tMEAN\tBIAS\tSTD DEV\tRMSE")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.4f\t%+.4f\t%.4f\t%.4f\n",
			s.Name, s.Design, s.Model, s.N, s.Tau, s.Mean, s.Bias, s.StdDev, s.RMSE)
	}
	return tw.Flush()
}
