package cache

import (
	"context"
	"sync"
	"time"
)

// entry stores one cached value with its expiry.
type entry struct {
	expiresAt time.Time
	value     []byte
}

// Memory is an in-process Store. Expired entries are dropped lazily when read
// and opportunistically when the store grows past MaxItems.
type Memory struct {
	MaxItems int
	// Now is the clock used for expiry; defaults to time.Now.
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

func NewMemory(maxItems int) *Memory {
	return &Memory{MaxItems: maxItems, items: make(map[string]entry)}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	now := m.now()
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !now.Before(e.expiresAt) {
		m.mu.Lock()
		// re-check: a concurrent Set may have refreshed the key
		if cur, ok := m.items[key]; ok && !now.Before(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]entry)
	}
	m.items[key] = entry{expiresAt: now.Add(ttl), value: v}

	// best-effort cap cache size
	if m.MaxItems > 0 && len(m.items) > m.MaxItems {
		// remove expired first, then arbitrary keys other than the one just written
		for k, e := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if !now.Before(e.expiresAt) {
				delete(m.items, k)
			}
		}
		for k := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if k != key {
				delete(m.items, k)
			}
		}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Close() error { return nil }
