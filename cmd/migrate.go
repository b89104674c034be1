package cmd

import (
	"beatmarket/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and unique indexes",
	Long:  `Runs GORM AutoMigrate for MySQL and SQLite, or creates the unique indexes for MongoDB.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		a, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Migration finished", logger.String("backend", cfg.DBBackend))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
