package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLiveness(t *testing.T) {
	h := New("test")

	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest("GET", "/healthz/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadinessAllUp(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(context.Context) error { return nil })
	h.RegisterCheck("redis", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest("GET", "/healthz/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Status != "ready" || body.Checks["database"] != "up" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestReadinessOneDown(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(context.Context) error { return nil })
	h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest("GET", "/healthz/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Status != "not_ready" {
		t.Fatalf("expected not_ready, got %s", body.Status)
	}
}

func TestStatusReportsEnvironment(t *testing.T) {
	h := New("dev")

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest("GET", "/healthz", nil))

	var body StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Environment != "dev" || body.Status != "healthy" {
		t.Fatalf("unexpected body %+v", body)
	}
}
