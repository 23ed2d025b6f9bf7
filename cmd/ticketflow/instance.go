package main

import (
	"encoding/json"
	"fmt"

	"github.com/mahi1722/ticketflow/internal/cli"
	"github.com/mahi1722/ticketflow/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"instances"},
	Short:   "Manage checkpointed workflow instances",
	Long:    `List, inspect, resume and remove the instances held by the configured checkpoint store.`,
}

var instanceLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.OpenInspector(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		ids, err := rt.Service.Instances(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing instances: %w", err)
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No instances found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), "- "+id)
		}
		return nil
	},
}

var instanceInspectCmd = &cobra.Command{
	Use:   "inspect <instance-id>",
	Short: "Inspect the last checkpoint of an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.OpenInspector(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		state, err := rt.Service.Inspect(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading instance '%s': %w", args[0], err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		out := termenv.NewOutput(cmd.OutOrStdout())
		tui.NewSummary(out.Profile).Render(cmd.OutOrStdout(), state)
		return nil
	},
}

var instanceResumeCmd = &cobra.Command{
	Use:   "resume <instance-id>",
	Short: "Continue an interrupted instance from its last checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}
		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		rt, err := cli.Build(sc, cfg, opts)
		if err != nil {
			return err
		}
		defer rt.Close()

		state, err := rt.Service.Resume(sc, args[0])
		if state != nil {
			out := termenv.NewOutput(cmd.OutOrStdout())
			tui.NewSummary(out.Profile).Render(cmd.OutOrStdout(), state)
		}
		if sc.Signal() != nil {
			return nil
		}
		return err
	},
}

var instanceRmCmd = &cobra.Command{
	Use:   "rm <instance-id>...",
	Short: "Remove one or more instances",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.OpenInspector(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		failed := 0
		for _, id := range args {
			if err := rt.Service.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed instance '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d instances could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instanceCmd)
	instanceCmd.AddCommand(instanceLsCmd, instanceInspectCmd, instanceResumeCmd, instanceRmCmd)
	instanceInspectCmd.Flags().Bool("json", false, "Print the raw snapshot as JSON")
	addBuildFlags(instanceResumeCmd)
}
