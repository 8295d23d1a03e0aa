// Package app assembles the quote service from configuration. Both binaries
// share it so the server and the CLI always see the same cache and upstreams.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"investapi/internal/asset"
	"investapi/internal/cache"
	"investapi/internal/config"
	"investapi/internal/httpx"
	"investapi/internal/provider"
	"investapi/internal/provider/coingecko"
	"investapi/internal/provider/ratelimit"
	"investapi/internal/provider/steammarket"
	"investapi/internal/provider/yahoo"
	"investapi/internal/quotes"
)

// App owns the service and the resources behind it.
type App struct {
	Service *quotes.Service
	store   cache.Store
}

// Close releases the cache store, if any.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// New wires the cache, the upstream clients and the service. A cache that
// cannot be opened is logged and left out, the same as one that fails its
// startup ping.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) *App {
	store, err := OpenStore(cfg.Cache)
	if err != nil {
		log.Warn("cache store could not be opened, running without cache", "backend", cfg.Cache.Backend, "err", err)
		store = nil
	}

	client := httpx.New(cfg.RequestTimeout())
	svc := quotes.New(ctx, quotes.Options{
		Store:        store,
		Fetchers:     Fetchers(cfg.Providers, client),
		TTL:          cfg.TTLPolicy(),
		Aliases:      cfg.Aliases(),
		CacheTimeout: cfg.CacheTimeout(),
		Logger:       log,
	})
	return &App{Service: svc, store: store}
}

// OpenStore builds the configured backend. "none" yields a nil store.
func OpenStore(c config.Cache) (cache.Store, error) {
	switch c.Backend {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemory(c.Memory.MaxItems), nil
	case "redis":
		return cache.NewRedis(cache.RedisOptions{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
		}), nil
	case "sqlite":
		s, err := cache.OpenSQLite(c.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}

// Fetchers builds one rate-limited client per asset kind.
func Fetchers(p config.Providers, client *httpx.Client) map[asset.Kind]provider.Fetcher {
	yopts := []yahoo.Option{yahoo.WithHTTPClient(client)}
	if p.Yahoo.Endpoint != "" {
		yopts = append(yopts, yahoo.WithBaseURL(p.Yahoo.Endpoint))
	}
	copts := []coingecko.Option{coingecko.WithHTTPClient(client), coingecko.WithAPIKey(p.CoinGecko.APIKey)}
	if p.CoinGecko.Endpoint != "" {
		copts = append(copts, coingecko.WithBaseURL(p.CoinGecko.Endpoint))
	}
	sopts := []steammarket.Option{steammarket.WithHTTPClient(client)}
	if p.Steam.Endpoint != "" {
		sopts = append(sopts, steammarket.WithBaseURL(p.Steam.Endpoint))
	}

	stock := yahoo.New(yopts...)
	crypto := coingecko.New(copts...)
	steam := steammarket.New(sopts...)

	return map[asset.Kind]provider.Fetcher{
		asset.Stock:     limited(stock, p.Yahoo),
		asset.Crypto:    limited(crypto, p.CoinGecko),
		asset.SteamItem: limited(steam, p.Steam),
	}
}

func limited(f provider.Fetcher, p config.Provider) provider.Fetcher {
	interval, perSecond, burst := p.Limit()
	return ratelimit.Wrap(f, interval, perSecond, burst)
}
