package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitBlocksOverLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// A different client keeps its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimitEvictsStaleClients(t *testing.T) {
	rl := &rateLimiter{limit: 1, window: time.Minute, clients: map[string]*rateBucket{}}
	now := time.Now()

	for i := 0; i < 50; i++ {
		rl.clients[fmt.Sprintf("10.0.%d.1", i)] = &rateBucket{count: 1, reset: now.Add(-time.Second)}
	}
	rl.clients["10.9.9.9"] = &rateBucket{count: 1, reset: now.Add(time.Minute)}

	rl.sweep(now)
	if len(rl.clients) != 1 {
		t.Fatalf("clients after sweep = %d, want 1", len(rl.clients))
	}
	if _, ok := rl.clients["10.9.9.9"]; !ok {
		t.Fatal("live bucket was evicted")
	}

	// Sweeps are throttled to once per window.
	rl.clients["10.0.0.1"] = &rateBucket{count: 1, reset: now.Add(-time.Second)}
	rl.sweep(now.Add(time.Second))
	if _, ok := rl.clients["10.0.0.1"]; !ok {
		t.Fatal("sweep ran again before the window rolled over")
	}
	rl.sweep(now.Add(2 * time.Minute))
	if _, ok := rl.clients["10.0.0.1"]; ok {
		t.Fatal("stale bucket survived the next sweep")
	}
}

func TestRateLimitDisabledWhenNonPositive(t *testing.T) {
	handler := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
}
