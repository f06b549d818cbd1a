package main

import (
	"github.com/spf13/cobra"

	"github.com/communalgrowth/docsub/internal/config"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "docsub",
		Short:         "Subscribe to documents by e-mail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	ctx.flags = config.BindFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOutput, "json", false, "Write results as JSON")

	rootCmd.AddCommand(newDaemonCommand(ctx))
	for _, cmd := range newActionCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newDeliverCommand(ctx))
	rootCmd.AddCommand(newClassifyCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newRecentCommand(ctx))
	rootCmd.AddCommand(newReindexCommand(ctx))
	rootCmd.AddCommand(newBackupCommand(ctx))
	rootCmd.AddCommand(newRestoreCommand(ctx))

	return rootCmd
}
