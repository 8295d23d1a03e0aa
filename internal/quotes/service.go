// Package quotes implements cache-aside quote retrieval: normalize the
// identifier, consult the cache, fetch on a miss and populate the cache.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"investapi/internal/asset"
	"investapi/internal/cache"
	"investapi/internal/logging"
	"investapi/internal/provider"
)

//go:generate mockgen -package=quotes_test -destination=mock_fetcher_test.go investapi/internal/provider Fetcher
//go:generate mockgen -package=quotes_test -destination=mock_store_test.go investapi/internal/cache Store

// DefaultCacheTimeout bounds every cache round-trip independently of the
// upstream timeout.
const DefaultCacheTimeout = 250 * time.Millisecond

type Options struct {
	// Store may be nil, in which case the service runs without a cache.
	Store    cache.Store
	Fetchers map[asset.Kind]provider.Fetcher
	TTL      asset.TTLPolicy
	// Aliases extends the crypto symbol table.
	Aliases      map[string]string
	CacheTimeout time.Duration
	Logger       *slog.Logger
}

// Service is the per-process retrieval handle. It is safe for concurrent use;
// the only state it holds besides its collaborators is the cache availability
// decided once in New.
type Service struct {
	store        cache.Store
	cacheUp      bool
	fetchers     map[asset.Kind]provider.Fetcher
	ttl          asset.TTLPolicy
	norm         *asset.Normalizer
	cacheTimeout time.Duration
	log          *slog.Logger
}

// New probes the store once. If the probe fails the service stays in no-cache
// mode for its whole lifetime.
func New(ctx context.Context, o Options) *Service {
	s := &Service{
		store:        o.Store,
		fetchers:     o.Fetchers,
		ttl:          o.TTL,
		norm:         asset.NewNormalizer(o.Aliases),
		cacheTimeout: o.CacheTimeout,
		log:          o.Logger,
	}
	if s.ttl == nil {
		s.ttl = asset.DefaultTTL()
	}
	if s.cacheTimeout <= 0 {
		s.cacheTimeout = DefaultCacheTimeout
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.fetchers == nil {
		s.fetchers = map[asset.Kind]provider.Fetcher{}
	}

	if s.store != nil {
		pctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
		err := s.store.Ping(pctx)
		cancel()
		if err != nil {
			s.log.Warn("cache store unavailable, running without cache", "err", err)
		} else {
			s.cacheUp = true
			s.log.Info("cache store connected")
		}
	}
	return s
}

// CacheAvailable reports the outcome of the startup probe.
func (s *Service) CacheAvailable() bool { return s.cacheUp }

// Normalize exposes the canonical form Retrieve uses for id.
func (s *Service) Normalize(id asset.ID) asset.ID { return s.norm.Normalize(id) }

// Retrieve returns the quote for id, from cache when a fresh entry exists.
// Errors are always *provider.Error.
func (s *Service) Retrieve(ctx context.Context, id asset.ID) (provider.Quote, error) {
	id = s.norm.Normalize(id)
	key := id.CacheKey()

	if q, ok := s.lookup(ctx, id); ok {
		return q, nil
	}

	f, ok := s.fetchers[id.Kind]
	if !ok {
		return provider.Quote{}, provider.ErrInternal("investapi", fmt.Errorf("no fetcher configured for %s", id.Kind))
	}
	q, err := f.Fetch(ctx, id)
	if err != nil {
		perr := provider.Classify(f.Name(), err)
		s.log.Warn("fetch failed", "kind", id.Kind.String(), "key", key, "source", f.Name(), "class", perr.Class.String(), "err", err)
		return provider.Quote{}, perr
	}

	s.save(ctx, key, q, s.ttl.For(id.Kind))
	return q, nil
}

// lookup treats every cache failure as a miss, including a well-formed
// record that describes some other asset than the key it was stored under.
func (s *Service) lookup(ctx context.Context, id asset.ID) (provider.Quote, bool) {
	if !s.cacheUp {
		return provider.Quote{}, false
	}
	key := id.CacheKey()
	cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	b, err := s.store.Get(cctx, key)
	if errors.Is(err, cache.ErrMiss) {
		s.log.Debug("cache miss", "key", key)
		return provider.Quote{}, false
	}
	if err != nil {
		s.log.Warn("cache get failed", "key", key, "err", err)
		return provider.Quote{}, false
	}
	q, err := provider.Decode(b)
	if err != nil {
		s.log.Warn("cache entry unreadable", "key", key, "err", err)
		return provider.Quote{}, false
	}
	if q.Kind != id.Kind || q.Identifier != id.String() {
		s.log.Warn("cache entry for another asset", "key", key, "kind", q.Kind.String(), "identifier", q.Identifier)
		return provider.Quote{}, false
	}
	s.log.Debug("cache hit", "key", key)
	return q, true
}

// save is best effort; the quote is already final whatever happens here. The
// write is detached from request cancellation so a client hanging up does not
// discard a good quote.
func (s *Service) save(ctx context.Context, key string, q provider.Quote, ttl time.Duration) {
	if !s.cacheUp {
		return
	}
	b, err := provider.Encode(q)
	if err != nil {
		s.log.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cacheTimeout)
	defer cancel()
	if err := s.store.Set(cctx, key, b, ttl); err != nil {
		s.log.Warn("cache set failed", "key", key, "err", err)
		return
	}
	s.log.Debug("cache set", "key", key, "ttl", ttl)
}
