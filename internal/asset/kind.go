package asset

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of asset kinds served by the gateway.
type Kind int

const (
	Stock Kind = iota + 1
	Crypto
	SteamItem
)

var kindNames = map[Kind]string{
	Stock:     "stock",
	Crypto:    "crypto",
	SteamItem: "steam",
}

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind { return []Kind{Stock, Crypto, SteamItem} }

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts the wire name of a kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown asset kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown asset kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// TTLPolicy maps a kind to the lifetime of its cached quotes.
type TTLPolicy map[Kind]time.Duration

// DefaultTTL mirrors price volatility: crypto moves faster than stocks and
// marketplace items.
func DefaultTTL() TTLPolicy {
	return TTLPolicy{
		Stock:     900 * time.Second,
		Crypto:    300 * time.Second,
		SteamItem: 900 * time.Second,
	}
}

// For returns the configured TTL for k, falling back to the default when the
// policy has no positive entry.
func (p TTLPolicy) For(k Kind) time.Duration {
	if d, ok := p[k]; ok && d > 0 {
		return d
	}
	return DefaultTTL()[k]
}
