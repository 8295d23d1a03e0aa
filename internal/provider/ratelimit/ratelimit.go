// Package ratelimit gates calls into an upstream fetcher so a burst of cache
// misses cannot trip the provider's own rate limits.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"investapi/internal/asset"
	"investapi/internal/provider"
)

// MinInterval wraps a fetcher and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last one was
// admitted, or return early if the context is canceled.
type MinInterval struct {
	F        provider.Fetcher
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.F.Name() }

func (m *MinInterval) Fetch(ctx context.Context, id asset.ID) (provider.Quote, error) {
	if m.Interval > 0 {
		// reserve a slot so concurrent callers queue behind each other
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if err := sleep(ctx, time.Until(slot)); err != nil {
			return provider.Quote{}, err
		}
	}
	return m.F.Fetch(ctx, id)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wrap applies the limiter a provider is configured with. A positive
// interval wins over a token bucket; with neither, f is returned unchanged.
func Wrap(f provider.Fetcher, interval time.Duration, perSecond float64, burst int) provider.Fetcher {
	switch {
	case interval > 0:
		return &MinInterval{F: f, Interval: interval}
	case perSecond > 0:
		return &TokenBucketFetcher{F: f, TB: NewTokenBucket(perSecond, burst)}
	default:
		return f
	}
}
