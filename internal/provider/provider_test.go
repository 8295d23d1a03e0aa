package provider_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"investapi/internal/asset"
	"investapi/internal/provider"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := provider.NewQuote(asset.StockTicker("AMD"), decimal.RequireFromString("123.45"), "Yahoo Finance", ts)

	b, err := provider.Encode(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"stock","identifier":"AMD","price":"123.45","currency":"USD","source":"Yahoo Finance","fetchedAt":"2025-01-02T03:04:05Z"}`, string(b))

	out, err := provider.Decode(b)
	require.NoError(t, err)
	require.Equal(t, in.Kind, out.Kind)
	require.Equal(t, in.Identifier, out.Identifier)
	require.True(t, in.Price.Equal(out.Price), "price %s != %s", in.Price, out.Price)
	require.Equal(t, "123.45", out.Price.StringFixed(2))
	require.Equal(t, in.Currency, out.Currency)
	require.Equal(t, in.Source, out.Source)
	require.True(t, in.FetchedAt.Equal(out.FetchedAt))
}

func TestEncodeDecode_SteamIdentifierAndSmallPrice(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := provider.NewQuote(asset.Steam(730, "AK-47 | Redline (Field-Tested)"), decimal.RequireFromString("0.00001234"), "Steam Market", ts)

	b, err := provider.Encode(in)
	require.NoError(t, err)
	out, err := provider.Decode(b)
	require.NoError(t, err)
	require.Equal(t, asset.SteamItem, out.Kind)
	require.Equal(t, "730:AK-47 | Redline (Field-Tested)", out.Identifier)
	require.True(t, in.Price.Equal(out.Price))
}

func TestDecode_AcceptsNumericPrice(t *testing.T) {
	t.Parallel()

	q, err := provider.Decode([]byte(`{"kind":"crypto","identifier":"bitcoin","price":64000.5,"currency":"USD","source":"CoinGecko","fetchedAt":"2025-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	require.Equal(t, "64000.5", q.Price.String())
}

func TestDecode_RejectsMalformed(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"not json":        `{"kind":`,
		"unknown kind":    `{"kind":"bond","identifier":"X","price":"1","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"no kind":         `{"identifier":"X","price":"1","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"no identifier":   `{"kind":"stock","price":"1","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"no fetchedAt":    `{"kind":"stock","identifier":"X","price":"1"}`,
		"price not a num": `{"kind":"stock","identifier":"X","price":"abc","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"no price":        `{"kind":"stock","identifier":"X","currency":"USD","source":"Yahoo Finance","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"zero price":      `{"kind":"stock","identifier":"X","price":"0","currency":"USD","source":"Yahoo Finance","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"negative price":  `{"kind":"stock","identifier":"X","price":"-1","currency":"USD","source":"Yahoo Finance","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"no currency":     `{"kind":"stock","identifier":"X","price":"1","source":"Yahoo Finance","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"other currency":  `{"kind":"stock","identifier":"X","price":"1","currency":"EUR","source":"Yahoo Finance","fetchedAt":"2025-01-02T03:04:05Z"}`,
		"no source":       `{"kind":"stock","identifier":"X","price":"1","currency":"USD","fetchedAt":"2025-01-02T03:04:05Z"}`,
	} {
		_, err := provider.Decode([]byte(raw))
		require.Errorf(t, err, "case %s", name)
	}
}

func TestNewQuote_TruncatesToSecond(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 999_000_000, time.FixedZone("X", 3600))
	q := provider.NewQuote(asset.Coin("bitcoin"), decimal.NewFromInt(1), "CoinGecko", ts)
	require.Equal(t, time.Date(2025, 1, 2, 2, 4, 5, 0, time.UTC), q.FetchedAt)
	require.Equal(t, "USD", q.Currency)
	require.Equal(t, "bitcoin", q.Identifier)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		err   error
		class provider.Class
	}{
		{"deadline", fmt.Errorf("performing request: %w", context.DeadlineExceeded), provider.UpstreamUnavailable},
		{"url timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, provider.UpstreamUnavailable},
		{"refused", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}, provider.UpstreamUnavailable},
		{"dns", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, provider.UpstreamUnavailable},
		{"passthrough", provider.ErrNotFound("Src", "gone"), provider.NotFound},
		{"wrapped passthrough", fmt.Errorf("ctx: %w", provider.ErrProtocol("Src", 500, nil)), provider.UpstreamProtocolError},
		{"other", errors.New("boom"), provider.Internal},
	}
	for _, tc := range cases {
		got := provider.Classify("Src", tc.err)
		require.NotNilf(t, got, "case %s", tc.name)
		require.Equalf(t, tc.class, got.Class, "case %s: %v", tc.name, got)
	}
	require.Nil(t, provider.Classify("Src", nil))
}

func TestError_StatusAndMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusNotFound, provider.ErrNotFound("Yahoo Finance", "stock %s not found", "ZZZZ").HTTPStatus())
	require.Equal(t, http.StatusServiceUnavailable, provider.ErrUnavailable("CoinGecko", errors.New("dial")).HTTPStatus())
	require.Equal(t, http.StatusBadGateway, provider.ErrProtocol("Steam Market", 429, nil).HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, provider.ErrInternal("x", nil).HTTPStatus())

	e := provider.ErrProtocol("Steam Market", 429, nil)
	require.Equal(t, 429, e.Status)
	require.Equal(t, "Steam Market: unexpected status 429", e.Error())
	require.Contains(t, provider.ErrNotFound("Yahoo Finance", "stock %s not found", "ZZZZ").Error(), "Yahoo Finance")

	cause := errors.New("dial tcp: refused")
	require.ErrorIs(t, provider.ErrUnavailable("CoinGecko", cause), cause)
}
