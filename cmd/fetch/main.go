// Command fetch retrieves quotes from the command line through the same
// cache-aside service the server uses, one JSON object per line.
//
//	fetch -kind stock AMD TSLA
//	fetch -kind crypto btc eth
//	fetch -kind steam -app 730 "Glove Case" "AK-47 | Redline (Field-Tested)"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"investapi/internal/app"
	"investapi/internal/asset"
	"investapi/internal/config"
	"investapi/internal/logging"
	"investapi/internal/provider"
)

type retriever interface {
	Retrieve(ctx context.Context, id asset.ID) (provider.Quote, error)
}

// failure is printed in place of a quote.
type failure struct {
	Kind       asset.Kind `json:"kind"`
	Identifier string     `json:"identifier"`
	Error      string     `json:"error"`
	Status     int        `json:"status"`
}

func main() {
	var kindName, configPath string
	var appID, timeout, concurrency int

	flag.StringVar(&kindName, "kind", getenv("KIND", "stock"), "asset kind: stock, crypto or steam")
	flag.IntVar(&appID, "app", getenvInt("STEAM_APP_ID", 730), "Steam app id for -kind steam")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 0), "per-identifier timeout seconds (default from config)")
	flag.IntVar(&concurrency, "concurrency", getenvInt("CONCURRENCY", 4), "parallel retrievals")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	flag.Parse()

	if err := run(kindName, appID, timeout, concurrency, configPath, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "fetch:", err)
		os.Exit(1)
	}
}

func run(kindName string, appID, timeout, concurrency int, configPath string, args []string) error {
	kind, err := asset.ParseKind(kindName)
	if err != nil {
		return err
	}
	ids, err := parseIDs(kind, appID, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}
	// stdout carries the results
	log := logging.New(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigctx, batchTimeout(cfg.RequestTimeout(), len(ids)))
	defer cancel()

	a := app.New(ctx, cfg, log)
	defer a.Close()

	failed, err := fetchAll(ctx, a.Service, ids, concurrency, os.Stdout)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d retrievals failed", failed, len(ids))
	}
	return nil
}

// batchTimeout gives every identifier its own request budget. Retrievals of
// one kind queue behind that provider's rate limiter, so in the worst case
// they run back to back.
func batchTimeout(perRequest time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(n)*perRequest + time.Second
}

func parseIDs(kind asset.Kind, appID int, args []string) ([]asset.ID, error) {
	if len(args) == 0 {
		return nil, errors.New("no identifiers given")
	}
	ids := make([]asset.ID, 0, len(args))
	for _, a := range args {
		if strings.TrimSpace(a) == "" {
			continue
		}
		switch kind {
		case asset.Stock:
			ids = append(ids, asset.StockTicker(a))
		case asset.Crypto:
			ids = append(ids, asset.Coin(a))
		case asset.SteamItem:
			if appID <= 0 {
				return nil, fmt.Errorf("invalid app id %d", appID)
			}
			ids = append(ids, asset.Steam(appID, a))
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no identifiers given")
	}
	return ids, nil
}

// fetchAll retrieves every id concurrently and writes one line per id in
// input order. Individual failures are reported inline and counted.
func fetchAll(ctx context.Context, r retriever, ids []asset.ID, concurrency int, w io.Writer) (int, error) {
	lines := make([]any, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			q, err := r.Retrieve(gctx, id)
			if err != nil {
				var perr *provider.Error
				status := 500
				if errors.As(err, &perr) {
					status = perr.HTTPStatus()
				}
				lines[i] = failure{Kind: id.Kind, Identifier: id.String(), Error: err.Error(), Status: status}
				return nil
			}
			lines[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	failed := 0
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, l := range lines {
		if _, ok := l.(failure); ok {
			failed++
		}
		if err := enc.Encode(l); err != nil {
			return failed, fmt.Errorf("write result: %w", err)
		}
	}
	return failed, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(v); err == nil {
			return x
		}
	}
	return def
}
