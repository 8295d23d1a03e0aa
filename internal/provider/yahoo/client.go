// Package yahoo fetches equity prices from the Yahoo Finance chart API.
package yahoo

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
	baseURL = "https://query1.finance.yahoo.com"
	// Source is the provider name carried by every quote.
	Source = "Yahoo Finance"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a stock quote fetcher backed by the chart endpoint.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client requests go through.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	now    func() time.Time
}

// Option is a configuration option for the Yahoo client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithClock overrides the clock used to stamp quotes.
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

// chartResponse is the subset of /v8/finance/chart we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string      `json:"symbol"`
				Currency           string      `json:"currency"`
				RegularMarketPrice json.Number `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the last regular-market price for id.Symbol.
func (c *Client) Fetch(ctx context.Context, id asset.ID) (provider.Quote, error) {
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(id.Symbol), q.Encode())

	var body chartResponse
	if err := httpx.GetJSON(ctx, c.httpClient, Source, "stock "+id.Symbol, u, c.header, &body); err != nil {
		return provider.Quote{}, err
	}
	if e := body.Chart.Error; e != nil && len(body.Chart.Result) == 0 {
		return provider.Quote{}, provider.ErrNotFound(Source, "stock %s not found: %s", id.Symbol, e.Description)
	}
	if len(body.Chart.Result) == 0 || body.Chart.Result[0].Meta.RegularMarketPrice == "" {
		return provider.Quote{}, provider.ErrNotFound(Source, "stock %s not found", id.Symbol)
	}

	price, err := decimal.NewFromString(body.Chart.Result[0].Meta.RegularMarketPrice.String())
	if err != nil {
		return provider.Quote{}, provider.ErrProtocol(Source, 0, fmt.Errorf("parsing price: %w", err))
	}
	if !price.IsPositive() {
		return provider.Quote{}, provider.ErrNotFound(Source, "price for stock %s not available", id.Symbol)
	}
	return provider.NewQuote(id, price, Source, c.now()), nil
}
