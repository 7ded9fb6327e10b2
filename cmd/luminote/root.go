package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "luminote",
	Short: "Learning assistant backend with metered model generation",
	Long: `Luminote is the backend for a note-taking learning assistant.

It streams model-generated answers, summaries, drill questions and
knowledge graphs to clients over SSE, and meters every generation
against a per-user token ledger.

Quick start:
  luminote serve     # Start the HTTP server

Management:
  luminote users     # Manage learner accounts
  luminote usage     # Inspect a user's token usage
  luminote validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "luminote.yaml", "config file path")
}
