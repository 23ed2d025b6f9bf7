package main

import (
	"fmt"
	"os"

	"github.com/mahi1722/ticketflow/internal/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ticketflow",
	Short: "ticketflow automates IT service tickets with checkpointed workflows",
	Long: `ticketflow routes service tickets through catalogued workflows chosen by a
language model, runs one action script per step, and checkpoints after every step
so interrupted tickets resume where they stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute loads the configuration and runs the selected command.
func Execute() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading configuration:", err)
		os.Exit(1)
	}
	// Persistent flags (available to all commands) override the environment.
	cfg.BindFlags(rootCmd.PersistentFlags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
