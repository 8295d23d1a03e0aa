package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"investapi/internal/asset"
	"investapi/internal/provider"
)

// retriever is the part of quotes.Service the routes use.
type retriever interface {
	Retrieve(ctx context.Context, id asset.ID) (provider.Quote, error)
	CacheAvailable() bool
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status string `json:"status"`
	Cache  bool   `json:"cache"`
}

func routes(svc retriever, timeout time.Duration, log *slog.Logger) http.Handler {
	h := &handlers{svc: svc, timeout: timeout, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /stock/{ticker}", h.stock)
	mux.HandleFunc("GET /crypto/{coin}", h.crypto)
	// market hash names may contain slashes
	mux.HandleFunc("GET /steam/{app_id}/{market_hash_name...}", h.steam)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	return mux
}

type handlers struct {
	svc     retriever
	timeout time.Duration
	log     *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Cache: h.svc.CacheAvailable()})
}

func (h *handlers) stock(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, asset.StockTicker(r.PathValue("ticker")))
}

func (h *handlers) crypto(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, asset.Coin(r.PathValue("coin")))
}

func (h *handlers) steam(w http.ResponseWriter, r *http.Request) {
	appID, err := strconv.Atoi(r.PathValue("app_id"))
	if err != nil || appID <= 0 {
		writeError(w, http.StatusBadRequest, "app_id must be a positive integer")
		return
	}
	name := r.PathValue("market_hash_name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "market_hash_name is empty")
		return
	}
	h.serve(w, r, asset.Steam(appID, name))
}

func (h *handlers) serve(w http.ResponseWriter, r *http.Request, id asset.ID) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	q, err := h.svc.Retrieve(ctx, id)
	if err != nil {
		status, detail := describe(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("retrieve failed", "kind", id.Kind.String(), "id", id.String(), "status", status, "err", err)
		}
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// describe maps a retrieval error to a status and a client-safe detail. The
// wrapped cause is logged, not returned.
func describe(err error) (int, string) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, "internal server error"
	}
	detail := perr.Source
	if perr.Detail != "" {
		detail += ": " + perr.Detail
	}
	return perr.HTTPStatus(), detail
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
