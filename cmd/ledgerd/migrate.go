package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trogers1052/portfolio-ledger/internal/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(cfg.Migrations); err != nil {
			return err
		}
		log.Info().Str("path", cfg.Migrations).Msg("migrations complete")
		return nil
	},
}
