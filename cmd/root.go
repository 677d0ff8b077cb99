// Package cmd defines the CLI commands for the product-search executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/product-search-crawler/internal/config"
	"github.com/JakeFAU/product-search-crawler/internal/pipeline"
	"github.com/JakeFAU/product-search-crawler/internal/server"
	"github.com/JakeFAU/product-search-crawler/internal/stream"
)

var (
	cfgFile string
	envFile string
)

type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the application. Tests inject a fake.
type App interface {
	Run(ctx context.Context) error
	Search(ctx context.Context, keyword string, out stream.Emitter) (pipeline.Summary, error)
	Close(ctx context.Context) error
}

// newApp is the application factory, replaced in tests.
var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product-search",
		Short: "Real-time product search across e-commerce sites.",
		Long: `product-search finds products for a keyword by querying a search API,
rendering each result site in a headless browser, and extracting listings
with structured data or a language model. Results stream as they are found.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config; missing files are ignored")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	return cmd
}

// loadEnvFile applies a dotenv file without overriding variables already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
