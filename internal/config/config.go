// Package config loads and validates auditor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs page retrieval behavior.
type FetchConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	DomainRPS      float64 `mapstructure:"domain_rps"`
	DomainBurst    int     `mapstructure:"domain_burst"`
}

// CacheConfig sets the persistent result cache location and lifetime.
type CacheConfig struct {
	Path       string `mapstructure:"path"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// BatchConfig shapes multi-URL audit runs.
type BatchConfig struct {
	Size          int `mapstructure:"size"`
	MaxConcurrent int `mapstructure:"max_concurrent"`
	PauseSeconds  int `mapstructure:"pause_seconds"`
}

// SnapshotConfig selects where fetched HTML is archived.
// Backend is one of "off", "local", "gcs".
type SnapshotConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for audit event notifications. An empty
// ProjectID disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// FeedbackConfig governs the LLM feedback generator and its throttle.
type FeedbackConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	TPMLimit     int     `mapstructure:"tpm_limit"`
	RPMLimit     int     `mapstructure:"rpm_limit"`
	SafetyMargin float64 `mapstructure:"safety_margin"`
	MaxRetries   int     `mapstructure:"max_retries"`
	BaseDelayMs  int     `mapstructure:"base_delay_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.domain_rps", 1.0)
	v.SetDefault("fetch.domain_burst", 2)
	v.SetDefault("cache.path", "audit_cache.json")
	v.SetDefault("cache.max_age_days", 7)
	v.SetDefault("batch.size", 5)
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("batch.pause_seconds", 1)
	v.SetDefault("snapshot.backend", "off")
	v.SetDefault("snapshot.local_dir", "data/snapshots")
	v.SetDefault("feedback.base_url", "https://api.openai.com/v1")
	v.SetDefault("feedback.model", "gpt-4o-mini")
	v.SetDefault("feedback.tpm_limit", 200000)
	v.SetDefault("feedback.rpm_limit", 1000)
	v.SetDefault("feedback.safety_margin", 0.8)
	v.SetDefault("feedback.max_retries", 3)
	v.SetDefault("feedback.base_delay_ms", 1000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path must be set")
	}
	if c.Cache.MaxAgeDays <= 0 {
		return fmt.Errorf("cache.max_age_days must be > 0")
	}
	if c.Batch.Size <= 0 || c.Batch.MaxConcurrent <= 0 {
		return fmt.Errorf("batch.size and batch.max_concurrent must be > 0")
	}
	switch c.Snapshot.Backend {
	case "off", "local", "gcs":
	default:
		return fmt.Errorf("snapshot.backend must be one of off, local, gcs")
	}
	if c.Snapshot.Backend == "gcs" && c.Snapshot.GCSBucket == "" {
		return fmt.Errorf("snapshot.gcs_bucket must be set when snapshot.backend is gcs")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	if c.Feedback.Enabled && c.Feedback.APIKey == "" {
		return fmt.Errorf("feedback.api_key must be set when feedback is enabled")
	}
	if c.Feedback.SafetyMargin <= 0 || c.Feedback.SafetyMargin > 1 {
		return fmt.Errorf("feedback.safety_margin must be in (0, 1]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BatchPause converts the inter-batch pause to a duration.
func (c Config) BatchPause() time.Duration {
	return time.Duration(c.Batch.PauseSeconds) * time.Second
}

// CacheMaxAge converts the cache lifetime to a duration.
func (c Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
}
