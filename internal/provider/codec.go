package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Encode renders q in the cache wire format: a flat JSON object with keys
// kind, identifier, price, currency, source and fetchedAt. Price is a decimal
// string so no precision is lost.
func Encode(q Quote) ([]byte, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quote: %w", err)
	}
	return b, nil
}

// Decode parses the cache wire format and rejects records that could not
// have been produced by Encode: every field present, a positive price and
// the USD currency.
func Decode(b []byte) (Quote, error) {
	var w struct {
		Quote
		// shadows Quote.Price so an absent price is distinguishable from zero
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	q := w.Quote
	switch {
	case !q.Kind.Valid():
		return Quote{}, errors.New("decode quote: missing kind")
	case q.Identifier == "":
		return Quote{}, errors.New("decode quote: missing identifier")
	case w.Price == nil:
		return Quote{}, errors.New("decode quote: missing price")
	case !w.Price.IsPositive():
		return Quote{}, fmt.Errorf("decode quote: non-positive price %s", w.Price)
	case q.Currency != Currency:
		return Quote{}, fmt.Errorf("decode quote: currency %q, want %s", q.Currency, Currency)
	case q.Source == "":
		return Quote{}, errors.New("decode quote: missing source")
	case q.FetchedAt.IsZero():
		return Quote{}, errors.New("decode quote: missing fetchedAt")
	}
	q.Price = *w.Price
	return q, nil
}
