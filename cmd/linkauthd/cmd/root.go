package cmd

import (
	"fmt"
	"os"

	"github.com/MrEthical07/linkauth/cmd/linkauthd/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "linkauthd",
	Short: "Password and social sign-in service with account linking",
	Long: `linkauthd issues JWT access tokens and per-device refresh tokens and links
Google, GitHub, Kakao and Naver identities to local accounts.
Configuration is read from LINKAUTH_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if dsn, _ := cmd.Flags().GetString("db-url"); dsn != "" {
			cfg.DatabaseURL = dsn
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "database DSN (env: LINKAUTH_DATABASE_URL)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if !c.LogJSON {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
