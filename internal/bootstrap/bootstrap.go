// Package bootstrap assembles the store, cache, platform adapters and
// service described by a Config. Both binaries start from it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/codeboard/internal/adapters/cache"
	"github.com/okian/codeboard/internal/adapters/platform"
	"github.com/okian/codeboard/internal/adapters/repository"
	"github.com/okian/codeboard/internal/adapters/repository/postgres"
	service "github.com/okian/codeboard/internal/app"
	"github.com/okian/codeboard/internal/config"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/logger"
)

// Runtime is an assembled, not yet started, service plus what it owns.
type Runtime struct {
	Store    repository.Store
	Adapters platform.Registry
	Service  *service.Service

	cache  *cache.RankingCache
	logger logger.Logger
}

// Build opens the configured store and cache and constructs the service.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	log = log.Named("bootstrap")
	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Store: store, logger: log}
	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithMaxAttempts(cfg.SyncMaxAttempts),
		service.WithBackoff(cfg.SyncBackoff),
		service.WithCooldown(cfg.Cooldown),
		service.WithVerificationRequired(cfg.VerificationRequired),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	}
	points, err := cfg.Points()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opts = append(opts, service.WithDefaultPoints(points))

	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis())
		if err != nil {
			// the in-process copy still serves reads
			log.Warn(ctx, "redis unavailable; ranking cache disabled", logger.String("addr", cfg.RedisAddr), logger.Error(err))
		} else {
			rt.cache = cache.NewRankingCache(client, cache.WithTTL(cfg.RankingTTL), cache.WithLogger(log))
			opts = append(opts, service.WithRankingCache(rt.cache))
			log.Info(ctx, "ranking cache enabled", logger.String("addr", cfg.RedisAddr))
		}
	}

	rt.Adapters = Adapters(cfg, log)
	rt.Service = service.New(store, rt.Adapters, opts...)
	return rt, nil
}

// OpenStore returns the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres())
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		store := postgres.New(db)
		if cfg.PostgresMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres store: %w", err)
			}
		}
		log.Info(ctx, "using postgres store", logger.String("host", cfg.PostgresHost), logger.String("db", cfg.PostgresDB))
		return store, nil
	case config.DriverMemory, "":
		log.Info(ctx, "using memory store")
		return repository.NewMemoryStore(ctx), nil
	}
	return nil, &config.UnknownDriverError{Driver: cfg.StoreDriver}
}

// Adapters builds the platform adapters over one rate-limited client.
func Adapters(cfg *config.Config, log logger.Logger) platform.Registry {
	opts := []platform.ClientOption{
		platform.WithTimeout(cfg.HTTPTimeout),
		platform.WithClientLogger(log),
	}
	for _, p := range model.Platforms {
		opts = append(opts, platform.WithRateLimit(p, cfg.PlatformRate(p), cfg.RateLimitBurst))
	}
	return platform.Defaults(platform.NewClient(opts...), cfg.GitHubToken)
}

// Close releases the cache and the store. The service must be stopped first.
func (r *Runtime) Close() error {
	var errs []error
	if r.cache != nil {
		errs = append(errs, r.cache.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}
