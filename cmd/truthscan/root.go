package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFlag string
	var jsonFlag bool

	ctx := newCommandContext(&envFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "truthscan",
		Short:         "TruthScan fact-checking service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFlag, "env-file", ".env", "Environment file loaded before reading configuration")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkCommand(ctx))
	rootCmd.AddCommand(newCollectCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newMatchAuthorCommand(ctx))
	rootCmd.AddCommand(newScansCommand(ctx))

	return rootCmd
}
