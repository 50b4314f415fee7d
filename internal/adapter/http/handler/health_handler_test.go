package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_Liveness(t *testing.T) {
	handler := NewHealthHandler()

	rec := httptest.NewRecorder()
	handler.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }

	handler := NewHealthHandler(HealthCheck{Name: "postgres", Check: ok}, HealthCheck{Name: "redis", Check: ok})

	rec := httptest.NewRecorder()
	handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Readiness_Unhealthy(t *testing.T) {
	var redisChecked bool
	handler := NewHealthHandler(
		HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
		HealthCheck{Name: "redis", Check: func(ctx context.Context) error { redisChecked = true; return nil }},
	)

	rec := httptest.NewRecorder()
	handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if redisChecked {
		t.Fatalf("expected readiness to stop at the first failing check")
	}
}
