package cli

import (
	"newsletter-backend/database"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newEnvironment(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := database.Migrate(rt.db); err != nil {
				return err
			}
			rt.logger.Info("schema migrated")
			return nil
		},
	}
}
