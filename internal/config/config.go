package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	mu sync.Mutex
	v  = viper.New()
)

// Environment names accepted in addition to the BLACKOUT_ prefixed form
var envAliases = map[string][]string{
	"extraction.ocr_space.api_key": {"BLACKOUT_EXTRACTION_OCR_SPACE_API_KEY", "OCR_API_KEY"},
	"cleanup.gemini.api_key":       {"BLACKOUT_CLEANUP_GEMINI_API_KEY", "GEMINI_API_KEY"},
	"cache.redis_url":              {"BLACKOUT_CACHE_REDIS_URL", "REDIS_URL"},
	"store.database_url":           {"BLACKOUT_STORE_DATABASE_URL", "DATABASE_URL"},
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	config := GetDefaults()

	v = viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/blackout/")
	v.AddConfigPath("$HOME/.blackout/")

	// Environment variable overrides
	v.SetEnvPrefix("BLACKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	for _, key := range []string{"server.port", "logging.level", "logging.format", "redaction.glyph", "redaction.overlap_policy", "cleanup.provider", "cache.enabled", "store.enabled"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// File returns the config file in use, or "" when running on defaults
func File() string {
	mu.Lock()
	defer mu.Unlock()
	return v.ConfigFileUsed()
}

// Validate validates the loaded configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if g := config.Redaction.Glyph; g != "" && utf8.RuneCountInString(g) != 1 {
		return fmt.Errorf("invalid glyph: %q (must be a single character)", g)
	}

	switch config.Redaction.OverlapPolicy {
	case "", "sequential", "union":
	default:
		return fmt.Errorf("invalid overlap policy: %s (must be sequential or union)", config.Redaction.OverlapPolicy)
	}

	switch config.Cleanup.Provider {
	case "", "none", "gemini":
	default:
		return fmt.Errorf("invalid cleanup provider: %s (must be none or gemini)", config.Cleanup.Provider)
	}

	for _, f := range config.Export.Formats {
		switch f {
		case "docx", "pdf", "txt":
		default:
			return fmt.Errorf("invalid export format: %s (must be docx, pdf, or txt)", f)
		}
	}

	if config.Batch.Workers <= 0 || config.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch workers and concurrency must be positive")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache enabled without redis_url")
	}

	if config.Store.Enabled && config.Store.DatabaseURL == "" {
		return fmt.Errorf("store enabled without database_url")
	}

	return nil
}

// Watch re-reads the configuration file whenever it changes and hands the
// validated result to callback. Invalid edits are logged and ignored.
func Watch(callback func(*Config), log *zap.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}
	if log == nil {
		log = zap.NewNop()
	}

	watched := v
	watched.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := watched.Unmarshal(newConfig); err != nil {
			log.Warn("Ignoring unreadable config change", zap.String("file", e.Name), zap.Error(err))
			return
		}

		if err := Validate(newConfig); err != nil {
			log.Warn("Ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
			return
		}

		log.Info("Configuration reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		callback(newConfig)
	})
	watched.WatchConfig()

	return nil
}
