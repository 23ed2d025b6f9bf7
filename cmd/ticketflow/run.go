package main

import (
	"errors"
	"fmt"

	"github.com/mahi1722/ticketflow/internal/cli"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <ticket.json>",
	Short: "Run the workflow of a single ticket",
	Long: `Reads a ticket record (or a {"result": [...]} envelope) and drives it to
completion. A ticket that was interrupted earlier resumes from its last checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticket, err := cli.ReadTicket(args[0])
		if err != nil {
			return err
		}
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		rt, err := cli.Build(sc, cfg, opts)
		if err != nil {
			return err
		}
		defer rt.Close()

		err = cli.RunTicket(sc, rt.Service, ticket, cmd.OutOrStdout(), asJSON)
		if sig := sc.Signal(); sig != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Interrupted by %v. Resume with: ticketflow instance resume %s\n",
				sig, domain.InstanceIDFor(ticket))
			return nil
		}
		var limitErr *domain.WorkflowLimitExceededError
		if errors.As(err, &limitErr) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Step limit reached. Resume with: ticketflow instance resume %s\n", limitErr.InstanceID)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
	runCmd.Flags().Bool("json", false, "Print the final snapshot as JSON")
}
