package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreLibSQL = "libsql"
	StoreMemory = "memory"
)

// Database holds libsql/Turso connection settings. An empty URL selects a
// local file in the XDG data directory. AutoMigrate applies pending
// migrations whenever the CLI opens the database.
type Database struct {
	URL          string `env:"DATABASE_URL"`
	AuthToken    string `env:"AUTH_TOKEN"`
	Ping         bool   `env:"DATABASE_PING" envDefault:"true"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"0"`
	AutoMigrate  bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

// Engine holds statistical and scan defaults for the experimentation engine.
type Engine struct {
	Alpha               float64 `env:"ALPHA" envDefault:"0.05"`
	MinSampleSize       int64   `env:"MIN_SAMPLE_SIZE" envDefault:"30"`
	DefaultDurationDays int     `env:"DEFAULT_DURATION_DAYS" envDefault:"14"`
	EventPageSize       int     `env:"EVENT_PAGE_SIZE" envDefault:"500"`
}

// Log holds logger settings.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// OTEL holds metrics exporter settings.
type OTEL struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	Insecure bool   `env:"OTEL_INSECURE" envDefault:"false"`
}

// Server holds HTTP server settings.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Config is the full application configuration, read from SPLITLAB_*
// environment variables.
type Config struct {
	Store    string `env:"STORE" envDefault:"libsql"`
	Database Database
	Engine   Engine
	Log      Log
	OTEL     OTEL
	Server   Server
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "SPLITLAB_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreLibSQL, StoreMemory:
	default:
		return fmt.Errorf("invalid SPLITLAB_STORE %q: want %s or %s", c.Store, StoreLibSQL, StoreMemory)
	}
	if c.Engine.Alpha <= 0 || c.Engine.Alpha >= 1 {
		return fmt.Errorf("invalid SPLITLAB_ALPHA %v: must be in (0, 1)", c.Engine.Alpha)
	}
	if c.Engine.MinSampleSize < 0 {
		return fmt.Errorf("invalid SPLITLAB_MIN_SAMPLE_SIZE %d", c.Engine.MinSampleSize)
	}
	if c.Engine.EventPageSize <= 0 {
		return fmt.Errorf("invalid SPLITLAB_EVENT_PAGE_SIZE %d", c.Engine.EventPageSize)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid SPLITLAB_LOG_FORMAT %q: want text or json", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid SPLITLAB_LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
