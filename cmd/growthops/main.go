package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "growthops",
	Short: "Growth experiment board: pipeline tracking, ICE scoring, and outcome analytics",
	Long: `growthops tracks growth experiments across a five-stage pipeline
(idea, hypothesis, running, complete, learnings) with ICE scoring,
per-board analytics, and an archive vault of past outcomes.

Run "growthops start" to launch the local server, then drive it with the
board, experiment, and comment subcommands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the growthops version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("growthops version %s\n", version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(experimentCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
