package config

import (
	"os"
	"path/filepath"

	"fjacquet/stmt-import/internal/logging"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file in the current or parent
// directory, if one exists. Variables already set in the environment win.
// It returns the file that was loaded, or "" when none was found.
func LoadEnv(logger logging.Logger) string {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	for _, envFile := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			logger.WithError(err).Warn("Error loading .env file", logging.F(logging.FieldInputFile, envFile))
			return ""
		}
		logger.Debug("Loaded environment variables", logging.F(logging.FieldInputFile, envFile))
		return envFile
	}

	logger.Debug("No .env file found, using environment variables")
	return ""
}

// NewLogger builds the application logger from the log section.
func NewLogger(cfg *Config) logging.Logger {
	return logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
}
