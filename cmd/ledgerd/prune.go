package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trogers1052/portfolio-ledger/internal/database"
)

func init() {
	pruneQuotesCmd.Flags().Int("keep-days", 730, "Keep daily quotes newer than this many days")
	bindLocalFlag(pruneQuotesCmd, "quotes.keep_days", "keep-days")

	rootCmd.AddCommand(pruneQuotesCmd)
}

var pruneQuotesCmd = &cobra.Command{
	Use:   "prune-quotes",
	Short: "Delete daily quotes older than the retention window",
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

		keepDays := viper.GetInt("quotes.keep_days")
		cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Truncate(24 * time.Hour)
		deleted, err := db.DeleteQuotesOlderThan(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("pruned daily quotes")
		return nil
	},
}
