package main

import (
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// withCORS answers preflight requests and marks cross-origin responses as
// readable from any origin. Requests without an Origin header pass through
// untouched.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") == "" {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response bodies for clients that accept gzip. The
// encoder is only taken from the pool once the handler writes body bytes, so
// 204s and empty responses go out plain.
func withGzip(next http.Handler) http.Handler {
	pool := &sync.Pool{New: func() any {
		// JSON payloads are small; favour CPU over ratio
		zw, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return zw
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")
		gw := &gzipResponseWriter{ResponseWriter: w, pool: pool}
		defer gw.finish()
		next.ServeHTTP(gw, r)
	})
}

// gzipResponseWriter holds back the status line until the first body byte,
// at which point it knows whether to switch to gzip.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool *sync.Pool

	status  int
	started bool
	zw      *gzip.Writer
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	if g.started || g.status != 0 {
		return
	}
	g.status = status
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if len(b) == 0 && !g.started {
		return 0, nil
	}
	if !g.started {
		g.start()
	}
	if g.zw == nil {
		return g.ResponseWriter.Write(b)
	}
	return g.zw.Write(b)
}

func (g *gzipResponseWriter) start() {
	g.started = true
	if g.status == 0 {
		g.status = http.StatusOK
	}
	if bodyAllowed(g.status) {
		h := g.Header()
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		g.zw = g.pool.Get().(*gzip.Writer)
		g.zw.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(g.status)
}

// finish flushes the status for handlers that never wrote a body and returns
// the encoder to the pool.
func (g *gzipResponseWriter) finish() {
	if !g.started {
		g.started = true
		if g.status == 0 {
			g.status = http.StatusOK
		}
		g.ResponseWriter.WriteHeader(g.status)
		return
	}
	if g.zw != nil {
		_ = g.zw.Close()
		g.zw.Reset(io.Discard)
		g.pool.Put(g.zw)
		g.zw = nil
	}
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

// recoverPanic turns a handler panic into a 500.
func recoverPanic(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
