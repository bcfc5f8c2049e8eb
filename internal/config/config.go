package config

import (
	"os"
	"path/filepath"

	"fjacquet/autocat/internal/logging"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file in the current or
// parent directory, if one exists. Variables already set in the environment
// win over the file. It returns the file that was loaded, or "".
func LoadEnv(logger logging.Logger) string {
	if logger == nil {
		logger = logging.GetLogger()
	}

	for _, envFile := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			logger.WithError(err).Warn("Error loading .env file")
			return ""
		}
		logger.Debug("Loaded environment variables", logging.Field{Key: "file", Value: envFile})
		return envFile
	}
	return ""
}

// GetEnv retrieves an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}
