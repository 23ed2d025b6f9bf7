package main

import (
	"fmt"
	"strings"

	"github.com/mahi1722/ticketflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ticketflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ticketflow version %s\n", strings.TrimSpace(ticketflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
