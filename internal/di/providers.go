package di

import (
	"context"
	"fmt"
	"time"

	"TickerPulse/internal/domain/repository"
	"TickerPulse/internal/handler/api"
	internalrepo "TickerPulse/internal/repository"
	"TickerPulse/internal/service/alphavantage"
	"TickerPulse/internal/service/ratelimit"
	"TickerPulse/internal/service/yahoo"
	"TickerPulse/internal/usecase"
	"TickerPulse/pkg/cache"
	pkgch "TickerPulse/pkg/clickhouse"
	"TickerPulse/pkg/config"
	xhttp "TickerPulse/pkg/http"
	pkgkafka "TickerPulse/pkg/kafka"
	"TickerPulse/pkg/logger"
	"TickerPulse/pkg/metrics"
	"TickerPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRateLimiter creates the process-wide provider rate limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideMarketProvider selects the provider client from configuration.
func ProvideMarketProvider(cfg *config.Config, limiter *ratelimit.Limiter, l *logger.Logger) (repository.MarketProvider, error) {
	switch cfg.Provider.Kind {
	case "yahoo":
		return yahoo.New(yahoo.Config{
			BaseURL:        cfg.Provider.Yahoo.BaseURL,
			SymbolMap:      cfg.Provider.Yahoo.SymbolMap,
			Timeout:        cfg.Provider.Timeout,
			MaxRetries:     cfg.Provider.MaxRetries,
			RetryBaseDelay: cfg.Provider.RetryBaseDelay,
			RateCalls:      cfg.Provider.Yahoo.RateLimit.Calls,
			RatePeriod:     cfg.Provider.Yahoo.RateLimit.Period,
		}, limiter, l), nil
	case "alphavantage":
		return alphavantage.New(alphavantage.Config{
			APIKey:         cfg.Provider.AlphaVantage.APIKey,
			BaseURL:        cfg.Provider.AlphaVantage.BaseURL,
			Timeout:        cfg.Provider.Timeout,
			MaxRetries:     cfg.Provider.MaxRetries,
			RetryBaseDelay: cfg.Provider.RetryBaseDelay,
			RateCalls:      cfg.Provider.AlphaVantage.RateLimit.Calls,
			RatePeriod:     cfg.Provider.AlphaVantage.RateLimit.Period,
		}, limiter, l), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Provider.Kind)
	}
}

// ProvideTickerStore creates the configured storage backend with schema ready.
func ProvideTickerStore(cfg *config.Config, l *logger.Logger) (repository.TickerStore, error) {
	var store repository.TickerStore

	switch cfg.Storage.Type {
	case "sqlite":
		s, err := internalrepo.NewSQLiteStore(cfg.Storage.SQLite.Path, l)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		store = s
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.Storage.ClickHouse.Host),
			pkgch.WithPort(cfg.Storage.ClickHouse.Port),
			pkgch.WithDatabase(cfg.Storage.ClickHouse.Database),
			pkgch.WithCredentials(cfg.Storage.ClickHouse.User, cfg.Storage.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithTimeouts(cfg.Storage.ClickHouse.DialTimeout, cfg.Storage.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.Storage.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewClickHouseStore(client, l)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("store init: %w", err)
	}
	return store, nil
}

// ProvideSyncEvents creates the sync event publisher, or a no-op when
// event publishing is disabled.
func ProvideSyncEvents(cfg *config.Config) (repository.SyncEvents, error) {
	if !cfg.Events.Enabled {
		return internalrepo.NoopSyncEvents{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Brokers),
		pkgkafka.WithCompression(cfg.Events.Compression),
		pkgkafka.WithRequiredAcks(cfg.Events.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaSyncEvents(producer, cfg.Events.Topic), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the result cache, or nil when caching is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	memOpts := []cache.MemoryOption{}
	if cfg.Cache.MemoryMaxSize > 0 {
		memOpts = append(memOpts, cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(memOpts...), nil
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	layeredOpts := []cache.LayeredOption{}
	if cfg.Cache.MemoryMaxSize > 0 {
		layeredOpts = append(layeredOpts, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
	}
	return cache.NewLayeredCache(redisCache, layeredOpts...), nil
}

// ProvideSyncEngine creates the sync engine.
func ProvideSyncEngine(
	provider repository.MarketProvider,
	store repository.TickerStore,
	events repository.SyncEvents,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.SyncEngine {
	return usecase.NewSyncEngine(provider, store, events, m, l,
		cfg.Sync.FreshnessWindow, cfg.Sync.Workers)
}

// ProvideDashboard creates the dashboard usecase.
func ProvideDashboard(
	engine *usecase.SyncEngine,
	store repository.TickerStore,
	provider repository.MarketProvider,
	c cache.Service,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.Dashboard {
	return usecase.NewDashboard(engine, store, provider, c, l, usecase.DashboardOptions{
		SeriesTTL:     cfg.Cache.SeriesTTL,
		NormalizedTTL: cfg.Cache.NormalizedTTL,
		DefaultScale:  cfg.Normalize.Scale,
	})
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *logger.Logger, dashboard *usecase.Dashboard) xhttp.Handler {
	return api.NewDashboardHandler(l, dashboard)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	store repository.TickerStore,
	events repository.SyncEvents,
	c cache.Service,
	dashboard *usecase.Dashboard,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, l, store, events, c, dashboard, handler)
}
