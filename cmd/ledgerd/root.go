package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trogers1052/portfolio-ledger/internal/config"
)

func init() {
	cobra.OnInitialize(readConfigFile)
	config.SetDefaults(viper.GetViper())

	rootCmd.PersistentFlags().String("config", "", "Config file (default ./ledgerd.yaml or /etc/portfolio-ledger/ledgerd.yaml)")

	rootCmd.PersistentFlags().String("log-level", "info", "Logging level: trace, debug, info, warning, error")
	bindFlag(rootCmd, "log.level", "log-level")

	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bindFlag(rootCmd, "log.output", "log-output")

	rootCmd.PersistentFlags().Bool("log-pretty", false, "Human readable console logs")
	bindFlag(rootCmd, "log.pretty", "log-pretty")

	rootCmd.PersistentFlags().String("migrations", "db/migrations", "Directory holding the SQL migrations")
	bindFlag(rootCmd, "migrations", "migrations")
}

var rootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "Portfolio ledger and tax-lot accounting service",
	Long:  `Records buys, sells, dividends and splits per portfolio, keeps FIFO tax lots and reports realized gains.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging()
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("key", key).Msg("could not bind flag")
	}
}

func bindLocalFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("key", key).Msg("could not bind flag")
	}
}

// readConfigFile loads an optional config file; environment variables and
// flags still take precedence over it
func readConfigFile() {
	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("ledgerd")
		viper.AddConfigPath("/etc/portfolio-ledger/")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "could not read config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
