package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	GitHub   GitHubConfig   `mapstructure:"github" yaml:"github"`
	Slack    SlackConfig    `mapstructure:"slack" yaml:"slack"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
}

// LoggerConfig controls the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig controls the HTTP ingress.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LLMProvider names a supported completion-service backend.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderGoogle    LLMProvider = "google"
)

// LLMConfig defines the completion-service client configuration.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// SystemPrompt overrides the built-in diagnosis prompt when set.
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt"`
}

// GitHubConfig defines the source-control query client configuration.
// Token is optional; unauthenticated calls are rate-limited accordingly.
type GitHubConfig struct {
	Token             string  `mapstructure:"token" yaml:"token"`
	Endpoint          string  `mapstructure:"endpoint" yaml:"endpoint"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// SlackConfig defines the notification webhook configuration.
type SlackConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AuditConfig locates the append-only incident log.
type AuditConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PipelineConfig tunes the enrichment pipeline.
type PipelineConfig struct {
	AppName      string `mapstructure:"app_name" yaml:"app_name"`
	RepoOwner    string `mapstructure:"repo_owner" yaml:"repo_owner"`
	RepoName     string `mapstructure:"repo_name" yaml:"repo_name"`
	HistoryDepth int    `mapstructure:"history_depth" yaml:"history_depth"`
	OwnerWindow  int    `mapstructure:"owner_window" yaml:"owner_window"`
	TopAuthors   int    `mapstructure:"top_authors" yaml:"top_authors"`
	FanOutLimit  int    `mapstructure:"fan_out_limit" yaml:"fan_out_limit"`
	// StripPrefixes are local filesystem prefixes removed from file paths
	// reported by the model before they are used as repository query keys.
	StripPrefixes []string `mapstructure:"strip_prefixes" yaml:"strip_prefixes"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stacksentry")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "15s")

	// -- LLM --
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-3-haiku-20240307")
	v.SetDefault("llm.api_timeout", "90s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)

	// -- GitHub --
	v.SetDefault("github.requests_per_second", 1.0)
	v.SetDefault("github.burst", 5)

	// -- Slack --
	v.SetDefault("slack.timeout", "10s")

	// -- Audit --
	v.SetDefault("audit.path", "~/.stacksentry/incidents.csv")

	// -- Pipeline --
	v.SetDefault("pipeline.app_name", "unknown-app")
	v.SetDefault("pipeline.history_depth", 3)
	v.SetDefault("pipeline.owner_window", 100)
	v.SetDefault("pipeline.top_authors", 3)
	v.SetDefault("pipeline.fan_out_limit", 4)
	v.SetDefault("pipeline.strip_prefixes", []string{})
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Finalize validates the configuration and expands filesystem paths.
func (c *Config) Finalize() error {
	expanded, err := homedir.Expand(c.Audit.Path)
	if err != nil {
		return fmt.Errorf("failed to expand audit store path %q: %w", c.Audit.Path, err)
	}
	c.Audit.Path = expanded

	if c.Pipeline.HistoryDepth < 1 {
		return fmt.Errorf("pipeline.history_depth must be at least 1, got %d", c.Pipeline.HistoryDepth)
	}
	if c.Pipeline.FanOutLimit < 1 {
		return fmt.Errorf("pipeline.fan_out_limit must be at least 1, got %d", c.Pipeline.FanOutLimit)
	}
	if c.Pipeline.OwnerWindow < 1 || c.Pipeline.OwnerWindow > 100 {
		return fmt.Errorf("pipeline.owner_window must be between 1 and 100, got %d", c.Pipeline.OwnerWindow)
	}

	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderGoogle:
	default:
		return fmt.Errorf("unknown llm provider %q (supported: %s, %s)",
			c.LLM.Provider, ProviderAnthropic, ProviderGoogle)
	}
	return nil
}
