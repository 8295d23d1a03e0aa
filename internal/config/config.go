package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"investapi/internal/asset"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Memory struct {
	MaxItems int `json:"max_items" yaml:"max_items"`
}

type Redis struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

type SQLite struct {
	Path string `json:"path" yaml:"path"`
}

// Cache selects and configures the quote cache. Backend is one of memory,
// redis, sqlite or none.
type Cache struct {
	Backend   string `json:"backend" yaml:"backend"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
	Memory    Memory `json:"memory" yaml:"memory"`
	Redis     Redis  `json:"redis" yaml:"redis"`
	SQLite    SQLite `json:"sqlite" yaml:"sqlite"`
}

type TTL struct {
	StockSec  int `json:"stock_sec" yaml:"stock_sec"`
	CryptoSec int `json:"crypto_sec" yaml:"crypto_sec"`
	SteamSec  int `json:"steam_sec" yaml:"steam_sec"`
}

type Crypto struct {
	// Aliases maps ticker symbols to CoinGecko ids on top of the built-in set.
	Aliases map[string]string `json:"aliases" yaml:"aliases"`
}

type Provider struct {
	Endpoint              string `json:"endpoint" yaml:"endpoint"`
	APIKey                string `json:"api_key" yaml:"api_key"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                 int    `json:"burst" yaml:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
}

// Limit returns the rate limiter settings in the shape ratelimit.Wrap takes.
func (p Provider) Limit() (interval time.Duration, perSecond float64, burst int) {
	return time.Duration(p.MinRequestIntervalSec) * time.Second, float64(p.MaxRequestsPerMinute) / 60.0, p.Burst
}

type Providers struct {
	Yahoo     Provider `json:"yahoo" yaml:"yahoo"`
	CoinGecko Provider `json:"coingecko" yaml:"coingecko"`
	Steam     Provider `json:"steam" yaml:"steam"`
}

type Config struct {
	Server    Server    `json:"server" yaml:"server"`
	Log       Log       `json:"log" yaml:"log"`
	Cache     Cache     `json:"cache" yaml:"cache"`
	TTL       TTL       `json:"ttl" yaml:"ttl"`
	Crypto    Crypto    `json:"crypto" yaml:"crypto"`
	Providers Providers `json:"providers" yaml:"providers"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Log:    Log{Level: "info", Format: "text"},
		Cache: Cache{
			Backend:   "redis",
			TimeoutMS: 250,
			Memory:    Memory{MaxItems: 10000},
			Redis:     Redis{Addr: "localhost:6379", KeyPrefix: ""},
			SQLite:    SQLite{Path: "data/cache.db"},
		},
		TTL: TTL{StockSec: 900, CryptoSec: 300, SteamSec: 900},
		Providers: Providers{
			Yahoo:     Provider{Endpoint: "https://query1.finance.yahoo.com", MaxRequestsPerMinute: 120, Burst: 5},
			CoinGecko: Provider{Endpoint: "https://api.coingecko.com", MaxRequestsPerMinute: 30, Burst: 5},
			// Steam throttles priceoverview aggressively.
			Steam: Provider{Endpoint: "https://steamcommunity.com", MaxRequestsPerMinute: 20, Burst: 1},
		},
	}
}

// Load reads a config file from path: YAML for .yaml/.yml, JSON otherwise. If
// path is empty, config.yaml then config.json are tried; a missing file means
// defaults. Environment variables override individual fields afterwards.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, p := range []string{"config.yaml", "config.json"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func (c Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "sqlite", "none":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Server.Port == "" {
		return errors.New("config: server port is empty")
	}
	return nil
}

// TTLPolicy converts the ttl section. Non-positive values fall back to the
// per-kind defaults.
func (c Config) TTLPolicy() asset.TTLPolicy {
	return asset.TTLPolicy{
		asset.Stock:     time.Duration(c.TTL.StockSec) * time.Second,
		asset.Crypto:    time.Duration(c.TTL.CryptoSec) * time.Second,
		asset.SteamItem: time.Duration(c.TTL.SteamSec) * time.Second,
	}
}

func (c Config) Aliases() map[string]string { return c.Crypto.Aliases }

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

func (c Config) CacheTimeout() time.Duration {
	return time.Duration(c.Cache.TimeoutMS) * time.Millisecond
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" || port != "" {
		h, p, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
		if err != nil {
			h, p = "localhost", "6379"
		}
		if host != "" {
			h = host
		}
		if port != "" {
			p = port
		}
		cfg.Cache.Redis.Addr = net.JoinHostPort(h, p)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if x, ok := envInt("REDIS_DB"); ok && x >= 0 {
		cfg.Cache.Redis.DB = x
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Cache.SQLite.Path = v
	}

	if x, ok := envInt("REDIS_STOCK_INTERVAL"); ok && x > 0 {
		cfg.TTL.StockSec = x
	}
	if x, ok := envInt("REDIS_CRYPTO_INTERVAL"); ok && x > 0 {
		cfg.TTL.CryptoSec = x
	}
	if x, ok := envInt("REDIS_STEAM_INTERVAL"); ok && x > 0 {
		cfg.TTL.SteamSec = x
	}

	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Providers.CoinGecko.APIKey = v
	}
	if v := os.Getenv("CRYPTO_ALIASES"); v != "" {
		aliases, err := ParseAliases(v)
		if err != nil {
			return fmt.Errorf("CRYPTO_ALIASES: %w", err)
		}
		if cfg.Crypto.Aliases == nil {
			cfg.Crypto.Aliases = map[string]string{}
		}
		for k, id := range aliases {
			cfg.Crypto.Aliases[k] = id
		}
	}
	return nil
}

// envInt reports whether key holds an integer. Garbage is ignored the same
// way an unset variable is.
func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return x, true
}

// ParseAliases parses "SYM=id,SYM2=id2".
func ParseAliases(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitCSV(s) {
		sym, id, ok := strings.Cut(pair, "=")
		sym, id = strings.TrimSpace(sym), strings.TrimSpace(id)
		if !ok || sym == "" || id == "" {
			return nil, fmt.Errorf("malformed alias %q, want SYMBOL=id", pair)
		}
		out[strings.ToUpper(sym)] = strings.ToLower(id)
	}
	return out, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
