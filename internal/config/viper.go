// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Oracle providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// LogConfig controls the logrus adapter.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ImportConfig holds defaults for statement imports.
type ImportConfig struct {
	Account string `mapstructure:"account" yaml:"account"`
	Format  string `mapstructure:"format" yaml:"format"`
}

// AIConfig configures the categorization oracle.
type AIConfig struct {
	Enabled             bool    `mapstructure:"enabled" yaml:"enabled"`
	Provider            string  `mapstructure:"provider" yaml:"provider"`
	Model               string  `mapstructure:"model" yaml:"model"`
	RequestsPerMinute   int     `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	CacheMaxEntries     int     `mapstructure:"cache_max_entries" yaml:"cache_max_entries"`
	GeminiAPIKey        string  `mapstructure:"gemini_api_key" yaml:"-"` // Never serialize API keys
	AnthropicAPIKey     string  `mapstructure:"anthropic_api_key" yaml:"-"`
}

// APIKey returns the key of the selected provider.
func (a AIConfig) APIKey() string {
	if a.Provider == ProviderAnthropic {
		return a.AnthropicAPIKey
	}
	return a.GeminiAPIKey
}

// Timeout returns the per-call oracle timeout.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// StoreConfig locates the bolt database and the optional registry seed file.
type StoreConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file"`
}

// NotionConfig configures the external mirror. An empty token selects the
// offline mirror.
type NotionConfig struct {
	Token          string `mapstructure:"token" yaml:"-"`
	EntitiesDB     string `mapstructure:"entities_db" yaml:"entities_db"`
	TransactionsDB string `mapstructure:"transactions_db" yaml:"transactions_db"`
}

// Enabled reports whether a Notion token is configured.
func (n NotionConfig) Enabled() bool {
	return n.Token != ""
}

// Config represents the complete application configuration
type Config struct {
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Import ImportConfig `mapstructure:"import" yaml:"import"`
	AI     AIConfig     `mapstructure:"ai" yaml:"ai"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Notion NotionConfig `mapstructure:"notion" yaml:"notion"`
}

// InitializeConfig loads configuration from the default locations.
func InitializeConfig() (*Config, error) {
	return Load("")
}

// Load builds the configuration with hierarchical precedence: defaults,
// then the config file, then STMT_* environment variables. An explicit
// configFile replaces the search path.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.stmt-import")
		v.AddConfigPath(".stmt-import")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix("STMT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configFile != "" {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
			fmt.Fprintf(os.Stderr, "Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. Secrets come from their conventional, unprefixed variables
	secrets := map[string]string{
		"ai.gemini_api_key":    "GEMINI_API_KEY",
		"ai.anthropic_api_key": "ANTHROPIC_API_KEY",
		"notion.token":         "NOTION_TOKEN",
	}
	for key, env := range secrets {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.AI.Provider = strings.ToLower(config.AI.Provider)

	// 6. Validate configuration
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

	// Import defaults
	v.SetDefault("import.account", "")
	v.SetDefault("import.format", "amex")

	// AI defaults
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.requests_per_minute", 10)
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.confidence_threshold", 0.7)
	v.SetDefault("ai.cache_max_entries", 0)

	// Store defaults
	v.SetDefault("store.path", "stmt-import.db")
	v.SetDefault("store.seed_file", "")

	// Notion defaults
	v.SetDefault("notion.entities_db", "")
	v.SetDefault("notion.transactions_db", "")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if config.AI.Provider != ProviderGemini && config.AI.Provider != ProviderAnthropic {
		return fmt.Errorf("invalid ai.provider: %s (must be '%s' or '%s')",
			config.AI.Provider, ProviderGemini, ProviderAnthropic)
	}

	if config.AI.Enabled {
		if config.AI.APIKey() == "" {
			return fmt.Errorf("API key for %s required when AI is enabled", config.AI.Provider)
		}

		if config.AI.RequestsPerMinute < 1 || config.AI.RequestsPerMinute > 1000 {
			return fmt.Errorf("ai.requests_per_minute must be between 1 and 1000, got: %d", config.AI.RequestsPerMinute)
		}

		if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
			return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
		}
	}

	if config.AI.ConfidenceThreshold < 0.0 || config.AI.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("ai.confidence_threshold must be between 0.0 and 1.0, got: %f", config.AI.ConfidenceThreshold)
	}

	if config.AI.CacheMaxEntries < 0 {
		return fmt.Errorf("ai.cache_max_entries must not be negative, got: %d", config.AI.CacheMaxEntries)
	}

	if config.Notion.Enabled() && (config.Notion.EntitiesDB == "" || config.Notion.TransactionsDB == "") {
		return fmt.Errorf("notion.entities_db and notion.transactions_db are required when NOTION_TOKEN is set")
	}

	return nil
}
