package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/bookrec/catalog"
	"github.com/rushteam/bookrec/config"
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/engine"
	"github.com/rushteam/bookrec/logging"
	"github.com/rushteam/bookrec/model"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/rating"
	"github.com/rushteam/bookrec/store"
)

// catalog 出站限速：Google Books 匿名配额较低
const (
	catalogRatePerSecond = 10
	catalogBurst         = 5
)

type app struct {
	engine  *engine.Engine
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn().Err(err).Msg("close resource")
		}
	}
}

func build(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var redisStore *store.RedisStore
	needRedis := cfg.Data.Source == config.SourceRedis ||
		(cfg.Cache.Enabled && cfg.Cache.Backend == config.CacheRedis)
	if needRedis {
		redisStore, err = store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisStore.Close)
	}

	var cat core.Catalog = catalog.NewGoogleBooks(catalog.Options{
		BaseURL:       cfg.Catalog.BaseURL,
		APIKey:        cfg.Catalog.APIKey,
		Timeout:       cfg.Catalog.Timeout,
		MaxFailures:   cfg.Catalog.Breaker.MaxFailures,
		OpenTimeout:   cfg.Catalog.Breaker.OpenTimeout,
		RatePerSecond: catalogRatePerSecond,
		Burst:         catalogBurst,
	})
	if cfg.Cache.Enabled {
		cache, err := cacheStore(cfg, redisStore)
		if err != nil {
			return nil, err
		}
		if cache != core.Store(redisStore) {
			a.closers = append(a.closers, cache.Close)
		}
		cat = catalog.NewCachedCatalog(cat, cache, cfg.Cache.TTL, cfg.Data.KeyPrefix)
		logging.Info().Str("backend", cache.Name()).Dur("ttl", cfg.Cache.TTL).Msg("catalog cache enabled")
	}

	nodes, err := pipeline.BuildNodes(config.DefaultFactory(), cfg.Pipeline.Nodes)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	a.engine = engine.New(engine.Options{
		Model:    model.Config{Metric: cfg.Model.Metric, Workers: cfg.Model.Workers},
		Fallback: catalog.NewFallback(cat, cfg.Catalog.GlobalQuery),
		Loader:   loader(cfg, redisStore),
		Nodes:    nodes,
	})
	return a, nil
}

func cacheStore(cfg *config.Config, redisStore *store.RedisStore) (core.Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		return redisStore, nil
	case config.CacheBadger:
		return store.NewBadgerStore(cfg.Cache.Dir)
	default:
		return store.NewMemoryStore(), nil
	}
}

func loader(cfg *config.Config, redisStore *store.RedisStore) engine.Loader {
	if cfg.Data.Source == config.SourceRedis {
		return func(ctx context.Context) (*rating.Store, error) {
			return rating.LoadFromStore(ctx, redisStore, cfg.Data.KeyPrefix)
		}
	}
	return func(context.Context) (*rating.Store, error) {
		return rating.LoadCSV(cfg.Data.RatingsPath, cfg.Data.BooksPath)
	}
}

// publishSnapshot 读取 CSV 并写入 Redis，供 data.source=redis 的实例加载。
func publishSnapshot(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr is required to publish")
	}
	src, err := rating.LoadCSV(cfg.Data.RatingsPath, cfg.Data.BooksPath)
	if err != nil {
		return err
	}
	rs, err := store.NewRedisStore(ctx, store.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rs.Close()
	return rating.Publish(ctx, rs, cfg.Data.KeyPrefix, src)
}
