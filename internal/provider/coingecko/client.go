// Package coingecko fetches cryptocurrency prices from the CoinGecko
// simple/price endpoint.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"investapi/internal/asset"
	"investapi/internal/httpx"
	"investapi/internal/provider"
)

const (
	baseURL = "https://api.coingecko.com"
	Source  = "CoinGecko"

	apiKeyHeader = "x-cg-demo-api-key"
	vsCurrency   = "usd"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coingecko_test -destination=mock_http_client_test.go -source=client.go HTTPClient
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

// WithAPIKey sends key as the demo API key header. An empty key is ignored.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.header.Set(apiKeyHeader, key)
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

// Fetch returns the USD price for the coin id in id.Symbol.
func (c *Client) Fetch(ctx context.Context, id asset.ID) (provider.Quote, error) {
	q := url.Values{}
	q.Set("ids", id.Symbol)
	q.Set("vs_currencies", vsCurrency)
	u := fmt.Sprintf("%s/api/v3/simple/price?%s", c.baseURL, q.Encode())

	// {"bitcoin":{"usd":67000.12}}; unknown ids are simply absent.
	var body map[string]map[string]json.Number
	if err := httpx.GetJSON(ctx, c.httpClient, Source, "cryptocurrency "+id.Symbol, u, c.header, &body); err != nil {
		return provider.Quote{}, err
	}
	raw, ok := body[id.Symbol][vsCurrency]
	if !ok || raw == "" {
		return provider.Quote{}, provider.ErrNotFound(Source, "cryptocurrency %s not found", id.Symbol)
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return provider.Quote{}, provider.ErrProtocol(Source, 0, fmt.Errorf("parsing price: %w", err))
	}
	if !price.IsPositive() {
		return provider.Quote{}, provider.ErrNotFound(Source, "price for cryptocurrency %s not available", id.Symbol)
	}
	return provider.NewQuote(id, price, Source, c.now()), nil
}
