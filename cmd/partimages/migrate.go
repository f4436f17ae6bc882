package main

import (
	"github.com/partimages/backend/internal/logging"
	"github.com/partimages/backend/internal/models"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates or updates the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := models.InitDB(cfg)
		if err != nil {
			return err
		}
		defer models.Close(db)

		if err := models.Migrate(db); err != nil {
			return err
		}
		logging.Info("migrations applied", logging.SourceCLI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
