// Package cmd defines and implements the CLI commands for the trends executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/app"
	"github.com/JakeFAU/trends-scraper/internal/config"
	"github.com/JakeFAU/trends-scraper/internal/logging"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application container the commands use. Tests
// inject their own implementation through an appFactory.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Service() trends.Service
}

// appFactory builds the application from a config file path.
type appFactory func(ctx context.Context, cfgPath string) (App, error)

func defaultApp(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates the root command with the serve and fetch subcommands.
func newRootCmd(factory appFactory) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Collects trending search topics from Google Trends.",
		Long: `trends fetches the "trending now" list for a location and language,
falling back through a headless browser, a raw request, the RSS feed and
best-effort text salvage so that a result is always produced.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed and hands it to the
		// subcommand through the context. Subcommands own closing it, since
		// cobra skips post-run hooks when RunE fails.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := factory(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newFetchCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd(defaultApp).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
