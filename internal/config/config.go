// Package config loads and validates ingest service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read before the environment is consulted, when present.
const DefaultEnvFile = ".env"

// Render modes.
const (
	RenderHeadless = "headless"
	RenderStatic   = "static"
	RenderAuto     = "auto"
)

// Snapshot backends.
const (
	SnapshotMemory = "memory"
	SnapshotLocal  = "local"
	SnapshotGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Render   RenderConfig   `mapstructure:"render"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	DB       DBConfig       `mapstructure:"db"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// StreamTimeoutSeconds bounds a streamed bulk ingest; 0 disables the bound.
	StreamTimeoutSeconds int `mapstructure:"stream_timeout_seconds"`
}

// AuthConfig defines the owner check on scraper routes.
type AuthConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	OwnerEmail string `mapstructure:"owner_email"`
}

// LoggingConfig selects the zap preset and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RenderConfig configures page rendering and per-site pacing.
type RenderConfig struct {
	Mode              string  `mapstructure:"mode"`
	UserAgent         string  `mapstructure:"user_agent"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	ExecPath          string  `mapstructure:"exec_path"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
	DomainBurst       int     `mapstructure:"domain_burst"`

	// PromotionThreshold is the body size under which auto mode treats a
	// script-heavy static page as needing the browser.
	PromotionThreshold int `mapstructure:"promotion_threshold"`
}

// IngestConfig bounds the quick batch and the mapping cache.
type IngestConfig struct {
	QuickBatchConcurrency  int `mapstructure:"quick_batch_concurrency"`
	QuickBatchMaxURLs      int `mapstructure:"quick_batch_max_urls"`
	MappingCacheTTLSeconds int `mapstructure:"mapping_cache_ttl_seconds"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory stores.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// SnapshotConfig configures the archive of blocked pages.
type SnapshotConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig holds the Pub/Sub destination for job summaries.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from an optional .env file, an optional YAML file at
// path, and INGEST_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("INGEST")
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

// loadEnvFile exports the variables of a dotenv file. Variables already set
// in the environment win. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("server.stream_timeout_seconds", 0)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.owner_email", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("render.mode", RenderHeadless)
	v.SetDefault("render.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("render.nav_timeout_seconds", 60)
	v.SetDefault("render.max_parallel", 4)
	v.SetDefault("render.exec_path", "")
	v.SetDefault("render.domain_qps", 0.5)
	v.SetDefault("render.domain_burst", 1)
	v.SetDefault("render.promotion_threshold", 2048)
	v.SetDefault("ingest.quick_batch_concurrency", 4)
	v.SetDefault("ingest.quick_batch_max_urls", 50)
	v.SetDefault("ingest.mapping_cache_ttl_seconds", 60)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.backend", SnapshotMemory)
	v.SetDefault("snapshot.base_dir", "data/snapshots")
	v.SetDefault("snapshot.gcs_bucket", "")
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "ingest-jobs")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.StreamTimeoutSeconds < 0 {
		return fmt.Errorf("server.stream_timeout_seconds must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Render.Mode {
	case RenderHeadless, RenderStatic, RenderAuto:
	default:
		return fmt.Errorf("render.mode must be headless, static or auto")
	}
	if c.Render.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("render.nav_timeout_seconds must be > 0")
	}
	if c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0")
	}
	if c.Render.DomainQPS < 0 {
		return fmt.Errorf("render.domain_qps must be >= 0")
	}
	if c.Render.PromotionThreshold < 0 {
		return fmt.Errorf("render.promotion_threshold must be >= 0")
	}
	if c.Ingest.QuickBatchConcurrency <= 0 {
		return fmt.Errorf("ingest.quick_batch_concurrency must be > 0")
	}
	if c.Ingest.QuickBatchMaxURLs <= 0 {
		return fmt.Errorf("ingest.quick_batch_max_urls must be > 0")
	}
	if c.DB.MinConns < 0 || (c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns) {
		return fmt.Errorf("db.min_conns must be between 0 and db.max_conns")
	}
	if c.Snapshot.Enabled {
		switch c.Snapshot.Backend {
		case SnapshotMemory:
		case SnapshotLocal:
			if c.Snapshot.BaseDir == "" {
				return fmt.Errorf("snapshot.base_dir must be set for the local backend")
			}
		case SnapshotGCS:
			if c.Snapshot.GCSBucket == "" {
				return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("snapshot.backend must be memory, local or gcs")
		}
	}
	if c.Notify.Enabled && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set when notify is enabled")
	}
	return nil
}

// RequestTimeout is the bound applied to non-streaming routes.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// StreamTimeout bounds a streamed ingest; zero means unbounded.
func (c Config) StreamTimeout() time.Duration {
	return time.Duration(c.Server.StreamTimeoutSeconds) * time.Second
}

// NavTimeout is the per-page navigation bound.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSeconds) * time.Second
}

// MappingCacheTTL is how long a collection's mapping is cached.
func (c Config) MappingCacheTTL() time.Duration {
	return time.Duration(c.Ingest.MappingCacheTTLSeconds) * time.Second
}

// MaxConnLifetime converts the pool setting to a duration.
func (c Config) MaxConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second
}
