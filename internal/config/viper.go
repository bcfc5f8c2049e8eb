// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"strings"

	"fjacquet/autocat/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g.
// AUTOCAT_CLASSIFICATION_CONFIDENCE_THRESHOLD.
const EnvPrefix = "AUTOCAT"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Store struct {
		Path               string `mapstructure:"path" yaml:"path"`
		UncategorizedLabel string `mapstructure:"uncategorized_label" yaml:"uncategorized_label"`
		IncludeHidden      bool   `mapstructure:"include_hidden" yaml:"include_hidden"`
	} `mapstructure:"store" yaml:"store"`

	Artifacts struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"artifacts" yaml:"artifacts"`

	Classification struct {
		ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
		TopK                int     `mapstructure:"top_k" yaml:"top_k"`
	} `mapstructure:"classification" yaml:"classification"`

	Training struct {
		NEstimators     int     `mapstructure:"n_estimators" yaml:"n_estimators"`
		MaxDepth        int     `mapstructure:"max_depth" yaml:"max_depth"`
		MinSamplesSplit int     `mapstructure:"min_samples_split" yaml:"min_samples_split"`
		Seed            int64   `mapstructure:"seed" yaml:"seed"`
		TestSize        float64 `mapstructure:"test_size" yaml:"test_size"`
		MaxFeatures     int     `mapstructure:"max_features" yaml:"max_features"`
		NgramMin        int     `mapstructure:"ngram_min" yaml:"ngram_min"`
		NgramMax        int     `mapstructure:"ngram_max" yaml:"ngram_max"`
		ReportFile      string  `mapstructure:"report_file" yaml:"report_file"`
	} `mapstructure:"training" yaml:"training"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then the config file, then AUTOCAT_* environment variables.
// configFile, when not empty, replaces the search of the standard locations.
func InitializeConfig(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.autocat")
		v.AddConfigPath(".autocat")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Store defaults
	v.SetDefault("store.path", "./data/user_data.db")
	v.SetDefault("store.uncategorized_label", "Uncategorized")
	v.SetDefault("store.include_hidden", false)

	// Artifact defaults
	v.SetDefault("artifacts.directory", "./data/model")

	// Classification defaults
	v.SetDefault("classification.confidence_threshold", 0.70)
	v.SetDefault("classification.top_k", 3)

	// Training defaults
	v.SetDefault("training.n_estimators", 100)
	v.SetDefault("training.max_depth", 0)
	v.SetDefault("training.min_samples_split", 2)
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.test_size", 0.2)
	v.SetDefault("training.max_features", 10000)
	v.SetDefault("training.ngram_min", 2)
	v.SetDefault("training.ngram_max", 7)
	v.SetDefault("training.report_file", "")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if strings.TrimSpace(config.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if strings.TrimSpace(config.Store.UncategorizedLabel) == "" {
		return fmt.Errorf("store.uncategorized_label must not be empty")
	}
	if strings.TrimSpace(config.Artifacts.Directory) == "" {
		return fmt.Errorf("artifacts.directory must not be empty")
	}

	// Validate confidence threshold
	if err := ValidateThreshold(config.Classification.ConfidenceThreshold); err != nil {
		return err
	}
	if config.Classification.TopK < 1 {
		return fmt.Errorf("classification.top_k must be at least 1, got: %d", config.Classification.TopK)
	}

	t := config.Training
	if t.NEstimators < 1 {
		return fmt.Errorf("training.n_estimators must be at least 1, got: %d", t.NEstimators)
	}
	if t.MaxDepth < 0 {
		return fmt.Errorf("training.max_depth must not be negative, got: %d", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return fmt.Errorf("training.min_samples_split must be at least 2, got: %d", t.MinSamplesSplit)
	}
	if t.TestSize <= 0 || t.TestSize >= 1 {
		return fmt.Errorf("training.test_size must be between 0 and 1 (exclusive), got: %f", t.TestSize)
	}
	if t.MaxFeatures < 1 {
		return fmt.Errorf("training.max_features must be at least 1, got: %d", t.MaxFeatures)
	}
	if t.NgramMin < 1 || t.NgramMax < t.NgramMin {
		return fmt.Errorf("invalid training n-gram range [%d, %d]", t.NgramMin, t.NgramMax)
	}

	return nil
}

// ValidateThreshold checks a confidence threshold, also when it comes from a
// command-line override.
func ValidateThreshold(threshold float64) error {
	if threshold < 0.0 || threshold > 1.0 {
		return fmt.Errorf("classification.confidence_threshold must be between 0.0 and 1.0, got: %f", threshold)
	}
	return nil
}

// ConfigureLoggingFromConfig builds the application logger from the log
// section. Output goes to stderr so stdout stays reserved for command output.
func ConfigureLoggingFromConfig(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(strings.ToLower(config.Log.Level), strings.ToLower(config.Log.Format))
}
