package asset

import (
	"strconv"
	"strings"
)

// ID identifies an asset. Stock and Crypto use Symbol; SteamItem uses the
// (AppID, MarketHashName) pair.
type ID struct {
	Kind           Kind
	Symbol         string
	AppID          int
	MarketHashName string
}

func StockTicker(ticker string) ID { return ID{Kind: Stock, Symbol: ticker} }

func Coin(symbol string) ID { return ID{Kind: Crypto, Symbol: symbol} }

func Steam(appID int, marketHashName string) ID {
	return ID{Kind: SteamItem, AppID: appID, MarketHashName: marketHashName}
}

// String renders the identifier part of a cache key. Market hash names stay
// raw; URL encoding is the Steam client's concern.
func (id ID) String() string {
	if id.Kind == SteamItem {
		return strconv.Itoa(id.AppID) + ":" + id.MarketHashName
	}
	return id.Symbol
}

// CacheKey is "<kind>:<identifier>", stable across processes.
func (id ID) CacheKey() string { return id.Kind.String() + ":" + id.String() }

// DefaultAliases maps common ticker symbols to CoinGecko ids.
var DefaultAliases = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"USDC":  "usd-coin",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"TRX":   "tron",
	"TON":   "the-open-network",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"XLM":   "stellar",
	"XMR":   "monero",
	"SHIB":  "shiba-inu",
	"ATOM":  "cosmos",
}

// Normalizer canonicalizes raw identifiers. It never fails: anything it does
// not recognize is forwarded so the upstream decides whether it exists.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a Normalizer from DefaultAliases plus extra, with extra
// taking precedence. Keys are matched case-insensitively.
func NewNormalizer(extra map[string]string) *Normalizer {
	m := make(map[string]string, len(DefaultAliases)+len(extra))
	for k, v := range DefaultAliases {
		m[strings.ToUpper(k)] = strings.ToLower(v)
	}
	for k, v := range extra {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		m[strings.ToUpper(k)] = strings.ToLower(v)
	}
	return &Normalizer{aliases: m}
}

func (n *Normalizer) Normalize(id ID) ID {
	switch id.Kind {
	case Stock:
		id.Symbol = strings.ToUpper(strings.TrimSpace(id.Symbol))
	case Crypto:
		sym := strings.TrimSpace(id.Symbol)
		if v, ok := n.aliases[strings.ToUpper(sym)]; ok {
			id.Symbol = v
		} else {
			id.Symbol = strings.ToLower(sym)
		}
	}
	return id
}
