package main

import (
	"fmt"

	"github.com/mahi1722/ticketflow/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [instance-id]",
	Short: "Export the workflow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the supervisor and category nodes.
With an instance ID, the nodes it visited and its current node are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.OpenInspector(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		instanceID := ""
		if len(args) > 0 {
			instanceID = args[0]
		}
		output, err := rt.Service.Graph(cmd.Context(), instanceID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
