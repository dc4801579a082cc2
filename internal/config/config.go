// Package config loads bizpilot configuration from viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/bizpilot/internal/analysis"
	"github.com/Veraticus/bizpilot/internal/assistant"
	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/llm"
)

// Defaults for keys that have one.
const (
	DefaultDatabasePath = "~/.local/share/bizpilot/bizpilot.db"
	DefaultServerAddr   = ":8080"
	DefaultProvider     = "openai"
	DefaultModel        = "gpt-4o-mini"
)

// EnvKeyReplacer maps nested keys onto environment names, so llm.api_key is
// read from BIZPILOT_LLM_API_KEY.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Config is the typed application configuration.
type Config struct {
	Logging   LoggingConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Assistant AssistantConfig
	Analysis  AnalysisConfig
	LLM       llm.Config
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string
}

// AssistantConfig tunes context building and tool declaration.
type AssistantConfig struct {
	FallbackLimit   int
	EventWindow     time.Duration
	TopicCacheTTL   time.Duration
	ExtendedActions bool
}

// AnalysisConfig tunes background correlation.
type AnalysisConfig struct {
	Timeout       time.Duration
	RecentRecords int
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("server.addr", DefaultServerAddr)

	v.SetDefault("llm.provider", DefaultProvider)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("assistant.fallback_limit", assistant.DefaultFallbackLimit)
	v.SetDefault("assistant.event_window", assistant.DefaultEventWindow)
	v.SetDefault("assistant.topic_cache_ttl", assistant.DefaultTopicCacheTTL)
	v.SetDefault("assistant.extended_actions", true)

	v.SetDefault("analysis.timeout", analysis.DefaultTimeout)
	v.SetDefault("analysis.recent_records", analysis.DefaultRecentRecords)
}

// Load reads the typed configuration from v. The API key falls back to
// OPENAI_API_KEY when llm.api_key is unset.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Database: DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		Server:   ServerConfig{Addr: v.GetString("server.addr")},
		LLM: llm.Config{
			Provider:    v.GetString("llm.provider"),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			RateLimit:   v.GetInt("llm.rate_limit"),
			Timeout:     v.GetDuration("llm.timeout"),
		},
		Assistant: AssistantConfig{
			FallbackLimit:   v.GetInt("assistant.fallback_limit"),
			EventWindow:     v.GetDuration("assistant.event_window"),
			TopicCacheTTL:   v.GetDuration("assistant.topic_cache_ttl"),
			ExtendedActions: v.GetBool("assistant.extended_actions"),
		},
		Analysis: AnalysisConfig{
			Timeout:       v.GetDuration("analysis.timeout"),
			RecentRecords: v.GetInt("analysis.recent_records"),
		},
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrMissingConfig)
	}
	if c.Assistant.FallbackLimit < 0 {
		return fmt.Errorf("%w: assistant.fallback_limit must not be negative", common.ErrInvalidConfig)
	}
	if c.Analysis.RecentRecords < 0 {
		return fmt.Errorf("%w: analysis.recent_records must not be negative", common.ErrInvalidConfig)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be between 0 and 2", common.ErrInvalidConfig)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: invalid log format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// BuilderConfig returns the context builder settings.
func (c *Config) BuilderConfig() assistant.BuilderConfig {
	return assistant.BuilderConfig{
		FallbackLimit: c.Assistant.FallbackLimit,
		EventWindow:   c.Assistant.EventWindow,
		TopicCacheTTL: c.Assistant.TopicCacheTTL,
	}
}

// CorrelatorConfig returns the correlation pipeline settings.
func (c *Config) CorrelatorConfig() analysis.Config {
	return analysis.Config{
		Timeout:       c.Analysis.Timeout,
		RecentRecords: c.Analysis.RecentRecords,
	}
}
