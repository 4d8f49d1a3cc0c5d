// Package cli implements the careerwatch command line: serve, run and detect.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"jobmate/careerwatch-service/internal/config"
	"jobmate/careerwatch-service/internal/logger"
)

// globalFlags override the matching environment variables.
type globalFlags struct {
	watchlist string
	logLevel  string
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "careerwatch",
		Short:         "Watch company career pages and alert on new job postings",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadEnvFiles()
		},
	}
	root.PersistentFlags().StringVar(&flags.watchlist, "watchlist", "", "watchlist YAML file (overrides WATCHLIST_PATH)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(flags, version),
		newRunCommand(flags),
		newDetectCommand(flags),
	)
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	return NewRootCommand(version).ExecuteContext(context.Background())
}

// loadConfig reads the environment and applies flag overrides.
// withStore selects the full validation.
func (f *globalFlags) loadConfig(withStore bool) (*config.Config, error) {
	load := config.LoadWithoutStore
	if withStore {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if f.watchlist != "" {
		cfg.WatchlistPath = f.watchlist
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}
	return log.With(logger.String("service", "careerwatch")), nil
}
