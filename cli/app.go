package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"ytmonitor/aggregate"
	"ytmonitor/config"
	ythttp "ytmonitor/http"
	"ytmonitor/internal/logging"
	"ytmonitor/internal/metrics"
	"ytmonitor/server"
	"ytmonitor/storage"
	"ytmonitor/youtube"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *storage.FileStore
	closers  []func() error
}

// openApp loads settings and opens the configuration store.
func openApp(opts *Options) (*app, error) {
	cfg, err := opts.settings()
	if err != nil {
		return nil, err
	}

	logger := logging.Init(cfg.LogLevel, "ytmonitor")
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := storage.OpenFileStore(cfg.ConfigPath, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open configuration: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		store:    store,
	}
	a.closers = append(a.closers, store.Close)
	return a, nil
}

// pipeline holds the wired pipeline components.
type pipeline struct {
	resolver   *youtube.Resolver
	aggregator *aggregate.Aggregator
	thumbnails *youtube.ThumbnailFetcher
	checks     map[string]server.Pinger
}

// buildPipeline wires the resolver, fetcher and aggregator. It needs an API key.
func (a *app) buildPipeline(ctx context.Context) (*pipeline, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	httpCfg := ythttp.DefaultConfig()
	httpCfg.Timeout = a.cfg.RequestTimeout
	httpCfg.Retry = a.cfg.Retry()
	httpCfg.CircuitBreaker.OnStateChange = func(host string, from, to ythttp.CircuitState) {
		a.logger.Warn().Str("host", host).Stringer("from", from).Stringer("to", to).Msg("circuit state changed")
		a.metrics.CircuitChange(host, to.String())
	}
	client := ythttp.New(httpCfg)
	a.closers = append(a.closers, client.Close)

	api, err := youtube.NewAPIClient(ctx, youtube.APIConfig{
		APIKey:      a.cfg.APIKey,
		HTTPClient:  client.HTTPClient(),
		Retry:       a.cfg.Retry(),
		CallTimeout: a.cfg.RequestTimeout,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, err
	}

	idCache, err := a.idCache()
	if err != nil {
		return nil, err
	}

	resolverOpts := []youtube.ResolverOption{
		youtube.WithResolverLogger(a.logger),
		youtube.WithResolverMetrics(a.metrics),
	}
	if a.cfg.ScrapeFallback {
		resolverOpts = append(resolverOpts, youtube.WithScraper(youtube.NewPageResolver(client)))
	}
	resolver := youtube.NewResolver(idCache, api, resolverOpts...)

	var fallback youtube.VideoSearcher
	if a.cfg.RSSFallback {
		fallback = youtube.NewFeedClient(client, "")
	}
	fetcher := youtube.NewFetcher(api, fallback, a.logger)

	cache, err := a.resultCache(ctx)
	if err != nil {
		return nil, err
	}

	checks := map[string]server.Pinger{}
	if rc, ok := cache.(*aggregate.RedisCache); ok {
		checks["redis"] = rc
	}

	return &pipeline{
		resolver: resolver,
		checks:   checks,
		aggregator: aggregate.New(resolver, fetcher, aggregate.Options{
			TTL:         a.cfg.CacheTTL,
			Concurrency: a.cfg.Concurrency,
			Cache:       cache,
			Logger:      a.logger,
			Metrics:     a.metrics,
		}),
		thumbnails: youtube.NewThumbnailFetcher(client),
	}, nil
}

func (a *app) idCache() (storage.IDCache, error) {
	if a.cfg.IDCachePath == "" {
		return a.store, nil
	}
	cache, err := storage.OpenSQLiteIDCache(a.cfg.IDCachePath)
	if err != nil {
		return nil, fmt.Errorf("open id cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)
	return cache, nil
}

func (a *app) resultCache(ctx context.Context) (aggregate.ResultCache, error) {
	if a.cfg.RedisURL == "" {
		return aggregate.NewMemoryCache(), nil
	}
	cache, err := aggregate.OpenRedisCache(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cache.Close)
	return cache, nil
}

// Close releases everything the commands opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
