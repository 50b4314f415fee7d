package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerengine/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// DefaultIdempotencyTTL is how long a stored response is replayed.
	DefaultIdempotencyTTL = 24 * time.Hour

	// idempotencyStoreTimeout bounds the store calls made after the handler returns.
	idempotencyStoreTimeout = 5 * time.Second
)

// IdempotencyMiddleware replays the first successful response for a repeated Idempotency-Key.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, logger zerolog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "idempotency").Logger(),
	}
}

type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(IdempotencyKeyHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		// The same key on a different endpoint is a different request.
		key := r.Method + " " + r.URL.Path + " " + header
		log := m.logger.With().
			Str("idempotency_key", header).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			log.Error().Err(err).Msg("idempotency check failed")
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if exists {
			m.replay(w, cached, log)
			return
		}

		// The key is pending from here on. It must end up stored or released even if the
		// client goes away or the handler panics.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), idempotencyStoreTimeout)
		defer cancel()

		completed := false
		defer func() {
			if !completed {
				log.Warn().Msg("handler did not complete, releasing idempotency key")
				m.release(storeCtx, key, log)
			}
		}()

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)
		completed = true

		if recorder.statusCode < 200 || recorder.statusCode >= 300 {
			m.release(storeCtx, key, log)
			return
		}

		payload, err := json.Marshal(storedResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()})
		if err != nil {
			log.Error().Err(err).Msg("encode idempotent response")
			m.release(storeCtx, key, log)
			return
		}
		if err := m.store.Update(storeCtx, key, payload, m.ttl); err != nil {
			log.Error().Err(err).Msg("store idempotent response")
			m.release(storeCtx, key, log)
		}
	})
}

func (m *IdempotencyMiddleware) replay(w http.ResponseWriter, cached []byte, log zerolog.Logger) {
	if string(cached) == usecase.IdempotencyPendingMarker {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		if _, err := w.Write([]byte(`{"error":"request with this idempotency key is in progress"}`)); err != nil {
			log.Debug().Err(err).Msg("write conflict response")
		}
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(cached, &stored); err != nil {
		log.Error().Err(err).Msg("corrupt idempotency record")
		http.Error(w, "corrupt idempotency record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Replay", "true")
	w.WriteHeader(stored.Status)
	if _, err := w.Write(stored.Body); err != nil {
		log.Debug().Err(err).Msg("write replayed response")
	}
}

func (m *IdempotencyMiddleware) release(ctx context.Context, key string, log zerolog.Logger) {
	if err := m.store.Release(ctx, key); err != nil {
		log.Error().Err(err).Msg("release idempotency key")
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
