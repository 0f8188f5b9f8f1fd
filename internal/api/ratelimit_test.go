package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := newTokenBucket(2, 0)
	if !tb.allow() || !tb.allow() {
		t.Fatal("burst of two refused")
	}
	if tb.allow() {
		t.Error("third request allowed with no refill")
	}
	if remaining, _ := tb.state(); remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := newTokenBucket(1, 1)
	tb.allow()
	tb.lastRefillTime = tb.lastRefillTime.Add(-2 * time.Second)
	if !tb.allow() {
		t.Error("token not refilled after two seconds")
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 1, BurstSize: 1})
	defer rl.Stop()
	if !rl.Allow("192.0.2.1") {
		t.Fatal("first request refused")
	}
	if rl.Allow("192.0.2.1") {
		t.Error("second request from the same IP allowed")
	}
	if !rl.Allow("192.0.2.2") {
		t.Error("other IP refused")
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60})
	defer rl.Stop()
	rl.Allow("192.0.2.1")
	rl.prune(time.Now().Add(10 * time.Minute))
	rl.mu.RLock()
	n := len(rl.buckets)
	rl.mu.RUnlock()
	if n != 0 {
		t.Errorf("%d buckets left after prune", n)
	}
}

func TestRateLimitMiddlewareHeaders(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Stop()
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-RateLimit-Limit") != "60" {
		t.Errorf("X-RateLimit-Limit = %q", w.Header().Get("X-RateLimit-Limit"))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Errorf("second request = %d, Retry-After %q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"remote addr", "", "", "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded", "203.0.113.5, 10.0.0.1", "", "192.0.2.1:1234", "203.0.113.5"},
		{"invalid forwarded", "garbage", "198.51.100.7", "192.0.2.1:1234", "198.51.100.7"},
		{"bare remote", "", "", "192.0.2.9", "192.0.2.9"},
		{"unknown", "", "", "nonsense", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
