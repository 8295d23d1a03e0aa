package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"investapi/internal/provider"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 1 << 20

// Doer is satisfied by *http.Client and *Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "investapi/1.0"}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

// GetJSON issues a GET and decodes a 2xx JSON body into v. Every failure is a
// *provider.Error for source: transport errors are UpstreamUnavailable, 404 is
// NotFound (detail "<desc> not found"), any other non-2xx or an undecodable
// body is UpstreamProtocolError.
func GetJSON(ctx context.Context, c Doer, source, desc, rawURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return provider.ErrInternal(source, fmt.Errorf("creating request: %w", err))
	}
	for k, vs := range header {
		for _, x := range vs {
			req.Header.Add(k, x)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := c.Do(req)
	if err != nil {
		return provider.Classify(source, fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return provider.Classify(source, fmt.Errorf("reading response: %w", err))
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		e := provider.ErrNotFound(source, "%s not found", desc)
		e.Status = res.StatusCode
		return e
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return provider.ErrProtocol(source, res.StatusCode, errors.New(snippet(body)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return provider.ErrProtocol(source, 0, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func snippet(b []byte) string {
	const n = 256
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[:n] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
