package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dallosh/analysis/pkg/config"
)

func buildRouterForTest(t *testing.T, cfg *Config, client redis.UniversalClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m, err := NewManager(cfg, client)
	require.NoError(t, err)
	r.Use(m.Middleware())
	r.GET("/t", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(200, "ok") })
	r.POST("/api/v0/tasks/delete-with-files", func(c *gin.Context) { c.String(200, "ok") })
	return r
}

func doReq(r *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, http.NoBody)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	r.ServeHTTP(w, req)
	return w
}

func testConfig(limit int64, period time.Duration) *Config {
	return &Config{
		GlobalRate:    RateConfig{Limit: limit, Period: period},
		RouteRates:    map[string]RateConfig{},
		Prefix:        "test:ratelimit:",
		MaxRetry:      1,
		ExcludedPaths: []string{"/health"},
	}
}

func TestInMemoryGlobalRateLimit(t *testing.T) {
	t.Run("Should block the second request from the same client", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(1, time.Second), nil)
		res1 := doReq(r, http.MethodGet, "/t", "1.2.3.4")
		require.Equal(t, 200, res1.Code)
		res2 := doReq(r, http.MethodGet, "/t", "1.2.3.4")
		require.Equal(t, 429, res2.Code)
		assert.Equal(t, "application/problem+json", res2.Header().Get("Content-Type"))
		assert.Contains(t, res2.Body.String(), "TOO_MANY_REQUESTS")
	})

	t.Run("Should keep separate budgets per client", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(1, time.Minute), nil)
		require.Equal(t, 200, doReq(r, http.MethodGet, "/t", "1.1.1.1").Code)
		require.Equal(t, 200, doReq(r, http.MethodGet, "/t", "2.2.2.2").Code)
	})

	t.Run("Should refill after the period", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(1, 100*time.Millisecond), nil)
		require.Equal(t, 200, doReq(r, http.MethodGet, "/t", "5.6.7.8").Code)
		require.Equal(t, 429, doReq(r, http.MethodGet, "/t", "5.6.7.8").Code)
		time.Sleep(120 * time.Millisecond)
		require.Equal(t, 200, doReq(r, http.MethodGet, "/t", "5.6.7.8").Code)
	})

	t.Run("Should set rate limit headers", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(2, time.Minute), nil)
		res := doReq(r, http.MethodGet, "/t", "9.9.9.9")
		require.Equal(t, 200, res.Code)
		require.NotEmpty(t, res.Header().Get("X-RateLimit-Limit"))
		require.NotEmpty(t, res.Header().Get("X-RateLimit-Remaining"))
		require.NotEmpty(t, res.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("Should not limit excluded paths", func(t *testing.T) {
		r := buildRouterForTest(t, testConfig(1, time.Minute), nil)
		for range 3 {
			require.Equal(t, 200, doReq(r, http.MethodGet, "/health", "3.3.3.3").Code)
		}
	})

	t.Run("Should pass everything through when disabled", func(t *testing.T) {
		cfg := testConfig(1, time.Minute)
		cfg.GlobalRate.Disabled = true
		r := buildRouterForTest(t, cfg, nil)
		for range 3 {
			require.Equal(t, 200, doReq(r, http.MethodGet, "/t", "4.4.4.4").Code)
		}
	})
}

func TestRouteRateLimit(t *testing.T) {
	t.Run("Should apply the route override instead of the global rate", func(t *testing.T) {
		cfg := testConfig(100, time.Minute)
		cfg.RouteRates["/api/v0/tasks/delete-with-files"] = RateConfig{Limit: 1, Period: time.Minute}
		r := buildRouterForTest(t, cfg, nil)
		require.Equal(t, 200, doReq(r, http.MethodPost, "/api/v0/tasks/delete-with-files", "7.7.7.7").Code)
		require.Equal(t, 429, doReq(r, http.MethodPost, "/api/v0/tasks/delete-with-files", "7.7.7.7").Code)
		require.Equal(t, 200, doReq(r, http.MethodGet, "/t", "7.7.7.7").Code)
	})
}

func TestRedisRateLimit(t *testing.T) {
	t.Run("Should share counters through redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cfg := testConfig(1, time.Minute)
		first := buildRouterForTest(t, cfg, client)
		second := buildRouterForTest(t, cfg, client)
		require.Equal(t, 200, doReq(first, http.MethodGet, "/t", "8.8.8.8").Code)
		require.Equal(t, 429, doReq(second, http.MethodGet, "/t", "8.8.8.8").Code)
	})
}

func TestFromAppConfig(t *testing.T) {
	t.Run("Should carry limit period and enabled flag", func(t *testing.T) {
		cfg := FromAppConfig(config.RateLimitConfig{Enabled: false, Limit: 5, Period: time.Second})
		assert.Equal(t, int64(5), cfg.GlobalRate.Limit)
		assert.Equal(t, time.Second, cfg.GlobalRate.Period)
		assert.True(t, cfg.GlobalRate.Disabled)
		require.NoError(t, cfg.Validate())
	})

	t.Run("Should reject a non positive route rate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RouteRates["/x"] = RateConfig{Limit: 0, Period: time.Minute}
		assert.Error(t, cfg.Validate())
	})
}
