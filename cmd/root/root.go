// Package root contains the root command for the application
package root

import (
	"fmt"
	"strings"
	"sync"

	"fjacquet/autocat/internal/config"
	"fjacquet/autocat/internal/container"
	"fjacquet/autocat/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// ConfigFile is the --config flag; empty searches the standard locations.
	ConfigFile string
	// LogLevel is the --log-level flag; empty keeps the configured level.
	LogLevel string
	// LogFormat is the --log-format flag; empty keeps the configured format.
	LogFormat string

	// AppContainer is built before any subcommand runs.
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "autocat",
		Short: "Automatically categorize bank transactions with a trained classifier.",
		Long: `autocat classifies uncategorized transactions of a personal finance
database. Predictions are written back only when their confidence exceeds
the configured threshold; everything else is left for manual review.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return Close()
		},
	}

	initOnce sync.Once
)

// Init initializes the root command and all flags
func Init() {
	initOnce.Do(func() {
		Cmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Config file (default: config.yaml in $HOME/.autocat, .autocat or .)")
		Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
		Cmd.PersistentFlags().StringVar(&LogFormat, "log-format", "", "Log format (text or json)")
	})
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.InitializeConfig(ConfigFile)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = strings.ToLower(LogLevel)
	}
	if LogFormat != "" {
		cfg.Log.Format = strings.ToLower(LogFormat)
	}

	logger := config.ConfigureLoggingFromConfig(cfg)
	logging.SetDefaultLogger(logger)

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	AppContainer = c
	return nil
}

// GetLogger returns the application logger, or the process fallback before
// the container exists.
func GetLogger() logging.Logger {
	if AppContainer == nil {
		return logging.GetLogger()
	}
	return AppContainer.GetLogger()
}

// Quiet restricts logging to errors, for commands whose stdout is parsed by
// other programs.
func Quiet() {
	if l, ok := GetLogger().(interface{ SetLevel(string) }); ok {
		l.SetLevel("error")
	}
}

// Close releases the container's resources.
func Close() error {
	if AppContainer == nil {
		return nil
	}
	err := AppContainer.Close()
	AppContainer = nil
	return err
}
