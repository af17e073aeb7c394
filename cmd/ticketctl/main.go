package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ticketctl",
		Short:         "Administrative tools for the ticket tracker",
		Long:          `ticketctl issues signed actor tokens and applies database migrations for the ticket tracker.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newTokenCommand(),
		newMigrateCommand(),
	)
	return rootCmd
}
