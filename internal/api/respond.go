package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeRaw(w, status, e.Bytes())
}

// cached serves the response for key from the cache when present, otherwise
// builds it with load, stores it and serves it. Cache failures are logged
// and degrade to a direct load.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, load func(ctx context.Context) (any, error)) {
	ctx := r.Context()

	if body, err := h.cache.Get(ctx, key); err == nil {
		writeRaw(w, http.StatusOK, body)
		return
	}

	v, err := load(ctx)
	if err != nil {
		h.lg.Error("loading response", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		h.lg.Error("encoding response", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.cache.Set(ctx, key, body, ttl); err != nil {
		h.lg.Warn("caching response", zap.String("key", key), zap.Error(err))
	}
	writeRaw(w, http.StatusOK, body)
}

// store marshals v, caches it under key and writes it to the client.
func (h *Handler) store(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.lg.Error("encoding response", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.cache.Set(r.Context(), key, body, ttl); err != nil {
		h.lg.Warn("caching response", zap.String("key", key), zap.Error(err))
	}
	writeRaw(w, http.StatusOK, body)
}

// pageParams parses limit and offset query parameters with the API defaults.
func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositive(v); err == nil {
			limit = min(n, maxPageLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := parsePositive(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value")
	}
	return n, nil
}
