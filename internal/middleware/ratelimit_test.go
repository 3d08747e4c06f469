package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/helmgate/internal/model"
)

func testConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    2,
		InstallRate:     rate.Limit(1.0 / 60.0),
		InstallBurst:    1,
		CleanupInterval: time.Hour,
	}
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1alpha1/instances", nil)
	return req.WithContext(ContextWithUser(req.Context(), &model.User{ID: userID}))
}

// TestGeneralMiddleware_AllowsWithinBurst はバースト内のリクエストが通過することを検証する。
func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("user_1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

// TestGeneralMiddleware_RejectsOverBurst はバースト超過で429が返ることを検証する。
func TestGeneralMiddleware_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("user_1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user_1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

// TestGeneralMiddleware_LimitsPerUser は制限がユーザーごとに独立していることを検証する。
func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("user_1"))
	}

	// 別ユーザーは影響を受けない
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("user_2"))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

// TestInstallMiddleware_IndependentOfGeneral はインストール制限が一般制限と
// 独立に動作することを検証する。
func TestInstallMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	install := rl.InstallMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// インストールのバースト(1)を使い切る
	install.ServeHTTP(httptest.NewRecorder(), authedRequest("user_1"))

	w := httptest.NewRecorder()
	install.ServeHTTP(w, authedRequest("user_1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("install status = %d, want 429", w.Code)
	}

	// 一般APIはまだ通る
	w = httptest.NewRecorder()
	general.ServeHTTP(w, authedRequest("user_1"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", w.Code)
	}
}

// TestMiddleware_AnonymousIsForbidden は認証前のリクエストが403になることを検証する。
func TestMiddleware_AnonymousIsForbidden(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("anonymous requests must not reach the handler")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1alpha1/instances", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// TestNewRateLimiterConfig_ConvertsPerMinute は分あたり設定の変換を検証する。
func TestNewRateLimiterConfig_ConvertsPerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)
	if cfg.GeneralRate != rate.Limit(2.0) {
		t.Errorf("GeneralRate = %v, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 || cfg.InstallBurst != 10 {
		t.Errorf("unexpected bursts: %+v", cfg)
	}
}
