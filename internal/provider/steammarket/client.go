// Package steammarket fetches item prices from the Steam Community Market
// priceoverview endpoint.
package steammarket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"investapi/internal/asset"
	"investapi/internal/httpx"
	"investapi/internal/provider"
)

const (
	baseURL = "https://steamcommunity.com"
	Source  = "Steam Market"

	// currencyUSD is Steam's numeric code for US dollars.
	currencyUSD = "1"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=steammarket_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	now        func() time.Time
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		now:        time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return Source }

type priceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

// Fetch returns the lowest listed price for the item, falling back to the
// median sale price when nothing is listed.
func (c *Client) Fetch(ctx context.Context, id asset.ID) (provider.Quote, error) {
	q := url.Values{}
	q.Set("appid", strconv.Itoa(id.AppID))
	q.Set("market_hash_name", id.MarketHashName)
	q.Set("currency", currencyUSD)
	u := fmt.Sprintf("%s/market/priceoverview/?%s", c.baseURL, q.Encode())

	desc := "steam item " + id.String()
	var body priceOverview
	if err := httpx.GetJSON(ctx, c.httpClient, Source, desc, u, c.header, &body); err != nil {
		return provider.Quote{}, err
	}
	if !body.Success {
		return provider.Quote{}, provider.ErrNotFound(Source, "%s not found", desc)
	}

	raw := body.LowestPrice
	if raw == "" {
		raw = body.MedianPrice
	}
	if raw == "" {
		return provider.Quote{}, provider.ErrNotFound(Source, "price for %s not available", desc)
	}

	price, err := ParsePrice(raw)
	if err != nil {
		return provider.Quote{}, provider.ErrProtocol(Source, 0, err)
	}
	if !price.IsPositive() {
		return provider.Quote{}, provider.ErrNotFound(Source, "price for %s not available", desc)
	}
	return provider.NewQuote(id, price, Source, c.now()), nil
}

// ParsePrice parses a display price such as "$1,234.56" or "$0.03 USD".
func ParsePrice(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", "USD", "").Replace(s)
	clean = strings.TrimSpace(clean)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing price %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("parsing price %q: negative", s)
	}
	return d, nil
}
