package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/jwebster45206/mask-engine/pkg/mask"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Environment     string        `env:"ENVIRONMENT"      envDefault:"development"`
	LogLevelName    string        `env:"LOG_LEVEL"        envDefault:"info"`
	ProgressBackend string        `env:"PROGRESS_BACKEND" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"        envDefault:"redis://localhost:6379/0"`
	ProfileID       uuid.UUID     `env:"PROFILE_ID"`
	ContentDir      string        `env:"CONTENT_DIR"      envDefault:"./data"`
	TrackFile       string        `env:"TRACK_FILE"`
	CatalogFile     string        `env:"CATALOG_FILE"`
	IdentityPolicy  string        `env:"IDENTITY_POLICY"`
	AutoRunDelay    time.Duration `env:"AUTO_RUN_DELAY"   envDefault:"100ms"`
	EventsEnabled   bool          `env:"EVENTS_ENABLED"   envDefault:"false"`

	// Derived in Load.
	LogLevel slog.Level
	Policy   mask.PriorityPolicy
}

// Load reads configuration from the environment. A missing PROFILE_ID gets
// a fresh random one.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	cfg.ProgressBackend = strings.ToLower(strings.TrimSpace(cfg.ProgressBackend))
	switch cfg.ProgressBackend {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown progress backend: %q", cfg.ProgressBackend)
	}

	// Empty defers to the catalog file's policy.
	if strings.TrimSpace(cfg.IdentityPolicy) != "" {
		policy, err := mask.ParsePolicy(cfg.IdentityPolicy)
		if err != nil {
			return nil, err
		}
		cfg.Policy = policy
	}

	if cfg.AutoRunDelay < 0 {
		return nil, fmt.Errorf("AUTO_RUN_DELAY must not be negative, got %s", cfg.AutoRunDelay)
	}
	if cfg.ProfileID == uuid.Nil {
		cfg.ProfileID = uuid.New()
	}
	return &cfg, nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.ProgressBackend == BackendRedis || c.EventsEnabled
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
