// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so that CODEBOARD_<KEY> env vars map 1:1.
// - New() returns a Config populated with defaults; Load layers file and env on top.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/codeboard/internal/adapters/cache"
	"github.com/okian/codeboard/internal/adapters/repository/postgres"
	"github.com/okian/codeboard/internal/domain/grading"
	"github.com/okian/codeboard/internal/domain/model"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// HTTPTimeout bounds every outbound platform request.
	HTTPTimeout time.Duration `koanf:"http_timeout"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StoreDriver selects the repository: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	PostgresHost         string `koanf:"postgres_host"`
	PostgresPort         int    `koanf:"postgres_port"`
	PostgresUser         string `koanf:"postgres_user"`
	PostgresPassword     string `koanf:"postgres_password"`
	PostgresDB           string `koanf:"postgres_db"`
	PostgresSSLMode      string `koanf:"postgres_sslmode"`
	PostgresMaxOpenConns int    `koanf:"postgres_max_open_conns"`
	PostgresMaxIdleConns int    `koanf:"postgres_max_idle_conns"`
	// PostgresMigrate creates missing tables on startup.
	PostgresMigrate bool `koanf:"postgres_migrate"`

	// RedisAddr enables the shared ranking cache when set.
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	RankingTTL    time.Duration `koanf:"ranking_cache_ttl"`

	// WorkerCount sets the number of sync workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory task queue.
	QueueSize int `koanf:"queue_size"`

	// SyncMaxAttempts is the per-task fetch ceiling.
	SyncMaxAttempts int `koanf:"sync_max_attempts"`
	// SyncBackoff is the fixed wait between transient failures.
	SyncBackoff time.Duration `koanf:"sync_backoff"`
	// Cooldown is how long a suspended link waits before it is retried.
	Cooldown time.Duration `koanf:"cooldown"`

	SyncCron     string `koanf:"sync_cron"`
	RankingCron  string `koanf:"ranking_cron"`
	CooldownCron string `koanf:"cooldown_cron"`
	// Timezone is the IANA zone cron expressions are evaluated in.
	Timezone string `koanf:"timezone"`

	// VerificationRequired sends submitted links to review instead of
	// accepting them directly.
	VerificationRequired bool `koanf:"verification_required"`

	// GradingPoints overrides default points per metric on first start.
	GradingPoints map[string]int64 `koanf:"grading_points"`

	// RateLimitRPS and RateLimitBurst shape requests to every platform;
	// PlatformRPS overrides the rate per platform.
	RateLimitRPS   float64            `koanf:"rate_limit_rps"`
	RateLimitBurst int                `koanf:"rate_limit_burst"`
	PlatformRPS    map[string]float64 `koanf:"platform_rps"`

	// GitHubToken enables the contribution count.
	GitHubToken string `koanf:"github_token"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		HTTPTimeout:          10 * time.Second,
		MaxLeaderboardLimit:  500,
		StoreDriver:          DriverMemory,
		PostgresHost:         "localhost",
		PostgresPort:         5432,
		PostgresUser:         "codeboard",
		PostgresDB:           "codeboard",
		PostgresSSLMode:      "disable",
		PostgresMaxOpenConns: 10,
		PostgresMaxIdleConns: 5,
		PostgresMigrate:      true,
		RankingTTL:           24 * time.Hour,
		WorkerCount:          runtime.NumCPU() * 2,
		QueueSize:            1024,
		SyncMaxAttempts:      5,
		SyncBackoff:          time.Second,
		Cooldown:             24 * time.Hour,
		SyncCron:             "0 2 * * 0",
		RankingCron:          "30 3 * * *",
		Timezone:             "Local",
		VerificationRequired: true,
		GradingPoints:        map[string]int64{},
		RateLimitRPS:         2,
		RateLimitBurst:       2,
		PlatformRPS:          map[string]float64{},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != DriverMemory && c.StoreDriver != DriverPostgres:
		return &UnknownDriverError{Driver: c.StoreDriver}
	case c.SyncCron == "" || c.RankingCron == "":
		return fmt.Errorf("%w: sync_cron and ranking_cron must not be empty", ErrInvalidConfig)
	case c.SyncMaxAttempts < 1:
		return fmt.Errorf("%w: sync_max_attempts must be at least 1", ErrInvalidConfig)
	case c.SyncBackoff < 0 || c.Cooldown < 0:
		return fmt.Errorf("%w: sync_backoff and cooldown must not be negative", ErrInvalidConfig)
	case c.WorkerCount < 1 || c.QueueSize < 1:
		return fmt.Errorf("%w: worker_count and queue_size must be positive", ErrInvalidConfig)
	case c.RateLimitRPS <= 0 || c.RateLimitBurst < 1:
		return fmt.Errorf("%w: rate_limit_rps and rate_limit_burst must be positive", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Points(); err != nil {
		return fmt.Errorf("%w: grading_points: %w", ErrInvalidConfig, err)
	}
	for name, rps := range c.PlatformRPS {
		if _, err := model.ParsePlatform(name); err != nil {
			return fmt.Errorf("%w: platform_rps: %w", ErrInvalidConfig, err)
		}
		if rps <= 0 {
			return fmt.Errorf("%w: platform_rps[%s] must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Points returns the default grading points with configured overrides applied.
func (c *Config) Points() (map[model.Metric]int64, error) {
	overrides, err := grading.ParsePoints(c.GradingPoints)
	if err != nil {
		return nil, err
	}
	points := grading.DefaultPoints()
	for m, p := range overrides {
		if p < 0 {
			return nil, fmt.Errorf("%w: %s has negative points", model.ErrInvalidInput, m)
		}
		points[m] = p
	}
	return points, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// PlatformRate returns the request rate of p.
func (c *Config) PlatformRate(p model.Platform) float64 {
	if rps, ok := c.PlatformRPS[string(p)]; ok {
		return rps
	}
	return c.RateLimitRPS
}

// Postgres returns the database settings.
func (c *Config) Postgres() postgres.Config {
	return postgres.Config{
		Host:         c.PostgresHost,
		Port:         c.PostgresPort,
		User:         c.PostgresUser,
		Password:     c.PostgresPassword,
		Name:         c.PostgresDB,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpenConns,
		MaxIdleConns: c.PostgresMaxIdleConns,
	}
}

// Redis returns the cache settings.
func (c *Config) Redis() cache.Config {
	return cache.Config{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
