package main

import (
	"fmt"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/partimages/backend/internal/config"
	"github.com/partimages/backend/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "partimages",
	Short:         "Image storage service for part photos backed by MinIO and PostgreSQL",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		cfg = config.New()
		if err := logging.Initialize(cfg.LogLevel, cfg.Debug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if cfg.SentryDSN != "" {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:         cfg.SentryDSN,
				Environment: cfg.Env,
			}); err != nil {
				logging.Warn("sentry initialization failed", logging.SourceCLI, zap.Error(err))
			}
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	sentry.Flush(sentryFlushTimeout)
	logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
