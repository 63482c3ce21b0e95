// Package cmd defines the CLI commands for the collector executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/app"
	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/config"
	"github.com/JakeFAU/dealfeed-collector/internal/logging"
	"github.com/JakeFAU/dealfeed-collector/internal/ops"
	"github.com/JakeFAU/dealfeed-collector/internal/pipeline"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the service container. Tests inject a mock.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Clock() collector.Clock
	NewRunID() (string, error)
	Run(ctx context.Context, runID string) (pipeline.Summary, error)
	Ops() *ops.Server
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile, envFile string

	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Collects marketplace deals posted to a Telegram channel.",
		Long: `collector reads the latest messages of a public Telegram channel, follows
the marketplace links they contain through a humanized browser session,
recovers the product category, stores the message photo once per content
digest and writes one record per qualifying message.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}
			cfg, err := config.Load(cfgFile, envFiles...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before the environment (default .env)")
	cmd.AddCommand(newCollectCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// closeApp shuts services down and flushes the logger. Commands defer it so it
// also runs when RunE fails.
func closeApp(appInstance App) {
	appInstance.Close()
	_ = appInstance.Logger().Sync()
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
