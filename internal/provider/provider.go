package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"investapi/internal/asset"
)

// Currency is the only quote currency the gateway serves.
const Currency = "USD"

// Quote is the normalized shape returned by all fetchers. It is never mutated
// after creation and is cached verbatim.
type Quote struct {
	Kind       asset.Kind      `json:"kind"`
	Identifier string          `json:"identifier"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Source     string          `json:"source"`
	FetchedAt  time.Time       `json:"fetchedAt"`
}

// NewQuote stamps a quote for id with now truncated to the second, the
// precision the cache format guarantees.
func NewQuote(id asset.ID, price decimal.Decimal, source string, now time.Time) Quote {
	return Quote{
		Kind:       id.Kind,
		Identifier: id.String(),
		Price:      price,
		Currency:   Currency,
		Source:     source,
		FetchedAt:  now.UTC().Truncate(time.Second),
	}
}

// Fetcher retrieves one quote for an already normalized identifier. Failures
// should be *Error values; anything else is treated as Internal.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, id asset.ID) (Quote, error)
}
