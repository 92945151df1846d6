package main

import (
	"github.com/spf13/cobra"
)

// rootCommand creates the detecta command tree
func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "detecta",
		Short:         "Detecta core services: threat intelligence, pricing and location tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.AddCommand(
		serveCommand(),
		quoteCommand(),
		matchCommand(),
	)

	return rootCmd
}
