package main

import (
	"github.com/spf13/cobra"

	"truthscan/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.database()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			ctx.logger.Info().Msg("✅ Database migrations completed successfully")
			return nil
		},
	}
}
