// Package cache provides the key/value stores quotes are cached in. Stores
// report failures explicitly; deciding to treat them as a miss is up to the
// caller.
package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired. Stores never
// return an expired value.
var ErrMiss = errors.New("cache: miss")

// Store is a byte-oriented key/value store with per-key expiry. It must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	io.Closer
}
