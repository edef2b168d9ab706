package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, rps float64, burst int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(rps, burst)
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	burst := 5
	limiter, _ := newTestLimiter(t, 1, burst)

	for i := 0; i < burst; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d within burst of %d should be allowed", i+1, burst)
		}
	}
	if limiter.allow("192.168.1.1") {
		t.Error("request exceeding burst should be denied")
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(t, 10, 2)

	limiter.allow("192.168.1.1")
	limiter.allow("192.168.1.1")
	if limiter.allow("192.168.1.1") {
		t.Fatal("expected request to be denied after exhausting burst")
	}

	clock.t = clock.t.Add(150 * time.Millisecond)
	if !limiter.allow("192.168.1.1") {
		t.Error("expected request to be allowed after token replenishment")
	}
}

func TestDifferentIPsHaveIndependentLimits(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)

	limiter.allow("10.0.0.1")
	if limiter.allow("10.0.0.1") {
		t.Error("expected second request from first IP to be denied")
	}
	if !limiter.allow("10.0.0.2") {
		t.Error("expected first request from second IP to be allowed")
	}
}

func TestEvictRemovesIdleVisitors(t *testing.T) {
	limiter, clock := newTestLimiter(t, 1, 1)

	limiter.allow("10.0.0.1")
	clock.t = clock.t.Add(visitorTTL + time.Second)
	limiter.allow("10.0.0.2")
	limiter.evict()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.visitors["10.0.0.1"]; ok {
		t.Error("expected idle visitor to be evicted")
	}
	if _, ok := limiter.visitors["10.0.0.2"]; !ok {
		t.Error("expected recent visitor to be kept")
	}
}

func TestMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	first.RemoteAddr = "192.168.1.1:12345"
	firstRecorder := httptest.NewRecorder()
	handler.ServeHTTP(firstRecorder, first)
	if firstRecorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", firstRecorder.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	second.RemoteAddr = "192.168.1.1:12345"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, second)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Retry-After"); got != "1" {
		t.Errorf("expected Retry-After=1, got %s", got)
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", got)
	}
}

func TestMiddleware_UsesForwardedClient(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:80"
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected %s to have its own bucket, got %d", ip, rec.Code)
		}
	}
}
