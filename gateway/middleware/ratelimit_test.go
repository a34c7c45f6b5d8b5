package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"playmint/crypto"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"submit": {RequestsPerMinute: 1, Burst: 1},
	}, nil)

	handler := limiter.Middleware("submit")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/submissions", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on throttled response")
	}
}

func TestRateLimiterSeparatesRoutes(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"submit":  {RequestsPerMinute: 1, Burst: 1},
		"checkin": {RequestsPerMinute: 1, Burst: 1},
	}, nil)

	submitHandler := limiter.Middleware("submit")(okHandler())
	checkinHandler := limiter.Middleware("checkin")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/submissions", nil)
	res := httptest.NewRecorder()
	submitHandler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected submit request to succeed, got %d", res.Code)
	}

	checkinReq := httptest.NewRequest(http.MethodPost, "/v1/checkins", nil)
	checkinRes := httptest.NewRecorder()
	checkinHandler.ServeHTTP(checkinRes, checkinReq)
	if checkinRes.Code != http.StatusOK {
		t.Fatalf("expected first checkin request to succeed, got %d", checkinRes.Code)
	}

	checkinRes = httptest.NewRecorder()
	checkinHandler.ServeHTTP(checkinRes, checkinReq)
	if checkinRes.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second checkin request to hit limit, got %d", checkinRes.Code)
	}
}

func TestRateLimiterKeysSignedCallers(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"submit": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("submit")(okHandler())

	for _, caller := range []crypto.Address{{0x01}, {0x02}} {
		req := httptest.NewRequest(http.MethodPost, "/v1/submissions", nil)
		req = req.WithContext(WithCaller(req.Context(), caller))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected caller %s to have its own bucket, got %d", caller, res.Code)
		}
	}
}

func TestRateLimiterUnlimitedRoute(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Middleware("epoch")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/epoch", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("expected unlimited route to pass, got %d", res.Code)
		}
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"submit": {RequestsPerMinute: 60, Burst: 1},
	}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("submit")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/submissions", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if limiter.Visitors() != 1 {
		t.Fatalf("expected one visitor, got %d", limiter.Visitors())
	}

	now = now.Add(10 * time.Minute)
	other := httptest.NewRequest(http.MethodPost, "/v1/submissions", nil)
	other.Header.Set("X-Real-IP", "10.0.0.2")
	handler.ServeHTTP(httptest.NewRecorder(), other)
	if limiter.Visitors() != 1 {
		t.Fatalf("expected idle visitor to be evicted, got %d", limiter.Visitors())
	}
}
