package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/campushub/internal/model"
)

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func limitedRequest(uid string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/questions", nil)
	ctx := ContextWithAccount(req.Context(), &model.UserAccount{UID: uid})
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Limit(1), GeneralBurst: 3,
		WriteRate: rate.Limit(1), WriteBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, limitedRequest("u-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestGeneralMiddleware_RejectsOverBurst(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Limit(0.01), GeneralBurst: 1,
		WriteRate: rate.Limit(1), WriteBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("u-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("u-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Limit(0.01), GeneralBurst: 1,
		WriteRate: rate.Limit(1), WriteBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("u-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("u-1 first request status = %d, want 200", rec.Code)
	}

	// 別ユーザーは独立したバケットを持つ。
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, limitedRequest("u-2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("u-2 first request status = %d, want 200", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestWriteMiddleware_IndependentOfGeneralLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: rate.Limit(10), GeneralBurst: 10,
		WriteRate: rate.Limit(0.01), WriteBurst: 1,
		CleanupInterval: time.Minute,
	})
	general := rl.GeneralMiddleware()(okHandler())
	write := rl.WriteMiddleware()(okHandler())

	// 書き込みバーストを使い切る。
	rec := httptest.NewRecorder()
	write.ServeHTTP(rec, limitedRequest("u-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("write request status = %d, want 200", rec.Code)
	}
	rec = httptest.NewRecorder()
	write.ServeHTTP(rec, limitedRequest("u-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status = %d, want 429", rec.Code)
	}

	// API全般の制限には影響しない。
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, limitedRequest("u-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("general request status = %d, want 200", rec.Code)
	}
}

func TestGeneralMiddleware_RequiresAccount(t *testing.T) {
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig())
	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWriteRateLimitResponse_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimitResponse(rec, rate.Limit(0.5))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}
