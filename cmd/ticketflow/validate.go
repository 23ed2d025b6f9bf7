package main

import (
	"fmt"

	"github.com/mahi1722/ticketflow/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalogue]",
	Short: "Check a workflow catalogue for consistency",
	Long: `Loads a YAML or HCL catalogue (or the configured/built-in one) and reports
workflows with unknown categories, empty action lists or actions without a tool.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Engine.CataloguePath
		if len(args) > 0 {
			path = args[0]
		}
		cat, err := cli.LoadCatalogue(path)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := cat.Registry(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		for _, wf := range cat.Summaries() {
			category, _ := cat.CategoryOf(wf.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s): %d actions\n", wf.Name, category, len(wf.Actions))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Catalogue is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
