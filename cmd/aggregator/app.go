package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"routeScope/internal/aggregate"
	"routeScope/internal/breaker"
	"routeScope/internal/cache"
	"routeScope/internal/chain"
	"routeScope/internal/config"
	"routeScope/internal/cost"
	"routeScope/internal/dex"
	"routeScope/internal/metrics"
	"routeScope/internal/oracle"
	"routeScope/internal/storage"
	"routeScope/internal/storage/postgres"
)

// app owns every long-lived dependency of one process.
type app struct {
	chain      *chain.Client
	redis      *cache.RedisCache
	store      *postgres.Store
	registry   *prometheus.Registry
	aggregator *aggregate.Aggregator
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.chain = client

	c, err := a.buildCache(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	c = cache.Instrument(c, m)

	native, _ := cfg.Tokens.Lookup(cfg.NativeSymbol)
	prices := oracle.New(c, cfg.PriceTTL, logger, buildSources(cfg, native.Address, m, logger)...)

	costs := cost.NewModel(cfg.CostConfig(), cost.NewGasPriceCache(client, cfg.GasPriceTTL), client, logger)
	deps := aggregate.Deps{
		Tokens:  cfg.Tokens,
		Prices:  prices,
		Cache:   c,
		Metrics: m,
		Logger:  logger,
	}
	for _, venue := range cfg.Venues {
		adapter, err := dex.NewAdapter(venue, client, costs, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Venues = append(deps.Venues, aggregate.VenueAdapter{Venue: venue, Adapter: adapter})
	}

	sink, err := a.buildSink(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.Sink = sink

	a.aggregator, err = aggregate.New(aggregate.Config{
		NativeSymbol:   cfg.NativeSymbol,
		MaxConcurrency: cfg.MaxConcurrency,
		RequestTimeout: cfg.RequestTimeout,
		Weights:        cfg.Weights,
		TTL: aggregate.TTLs{
			Mid:       cfg.MidTTL,
			Quote:     cfg.QuoteTTL,
			Liquidity: cfg.LiquidityTTL,
			Cost:      cfg.CostTTL,
		},
	}, deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build aggregator: %w", err)
	}
	return a, nil
}

func (a *app) buildCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.Cache, error) {
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			logger.Warn("redis unavailable, using in-process cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			a.redis = rc
			return rc, nil
		}
	}
	return cache.NewMemoryCache(cache.DefaultMemorySize)
}

func buildSources(cfg config.Config, wrappedNative common.Address, m *metrics.Metrics, logger *zap.Logger) []oracle.Source {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	guard := oracle.GuardConfig{
		Breaker: breaker.Config{
			FailureThreshold: cfg.BreakerThreshold,
			Window:           cfg.BreakerWindow,
			Cooldown:         cfg.BreakerCooldown,
		},
		Retry: oracle.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBackoff,
			MaxDelay:   cfg.RetryMaxBackoff,
		},
		RPS:      cfg.SourceRPS,
		Recorder: m,
		Logger:   logger,
	}

	coingecko := oracle.NewCoinGecko(oracle.CoinGeckoConfig{
		BaseURL:       cfg.CoinGeckoURL,
		APIKey:        cfg.CoinGeckoAPIKey,
		Pro:           cfg.CoinGeckoPro,
		Platform:      cfg.CoinGeckoPlatform,
		NativeID:      cfg.NativePriceID(),
		WrappedNative: wrappedNative,
		HTTPClient:    httpClient,
	})
	llama := oracle.NewDefiLlama(oracle.DefiLlamaConfig{
		BaseURL:       cfg.DefiLlamaURL,
		Chain:         cfg.DefiLlamaChain,
		NativeID:      cfg.NativePriceID(),
		WrappedNative: wrappedNative,
		HTTPClient:    httpClient,
	})
	return []oracle.Source{oracle.Guard(coingecko, guard), oracle.Guard(llama, guard)}
}

func (a *app) buildSink(ctx context.Context, cfg config.Config) (storage.RouteSink, error) {
	var sinks storage.MultiSink
	if cfg.SnapshotOut != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.SnapshotOut))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		a.store = store
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// Close releases whatever buildApp opened.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
