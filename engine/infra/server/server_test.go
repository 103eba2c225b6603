package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dallosh/analysis/engine/infra/server/router/routertest"
	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
)

type healthBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Version    string                    `json:"version"`
		Ready      bool                      `json:"ready"`
		Components map[string]map[string]any `json:"components"`
	} `json:"data"`
}

func newTestRouter(t *testing.T, h *routertest.Harness, commands ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggerMiddleware(logger.NewForTests()))
	RegisterRoutes(context.Background(), r, h.State, commands...)
	return r
}

func getHealth(t *testing.T, r http.Handler, path string) (int, healthBody) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler(t *testing.T) {
	t.Run("Should report ready when every check passes", func(t *testing.T) {
		h := routertest.NewHarness(t, nil)
		h.State.RegisterHealthCheck("database", func(context.Context) error { return nil })
		h.State.RegisterHealthCheck("broker", func(context.Context) error { return nil })
		r := newTestRouter(t, h)
		for _, path := range []string{"/health", "/api/v0/health"} {
			code, body := getHealth(t, r, path)
			assert.Equal(t, http.StatusOK, code)
			assert.True(t, body.Data.Ready)
			assert.NotEmpty(t, body.Data.Version)
			assert.Equal(t, true, body.Data.Components["broker"]["ready"])
		}
	})

	t.Run("Should answer 503 naming the failing component", func(t *testing.T) {
		h := routertest.NewHarness(t, nil)
		h.State.RegisterHealthCheck("database", func(context.Context) error { return nil })
		h.State.RegisterHealthCheck("broker", func(context.Context) error { return errBrokerNotConnected })
		code, body := getHealth(t, newTestRouter(t, h), "/api/v0/health")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, statusNotReady, body.Message)
		assert.False(t, body.Data.Ready)
		assert.Equal(t, "broker not connected", body.Data.Components["broker"]["error"])
		assert.Equal(t, true, body.Data.Components["database"]["ready"])
	})
}

func TestRegisterRoutes(t *testing.T) {
	t.Run("Should mount the task API under the versioned base", func(t *testing.T) {
		h := routertest.NewHarness(t, nil)
		r := newTestRouter(t, h)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v0/tasks", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Should pass command middleware to lifecycle routes only", func(t *testing.T) {
		h := routertest.NewHarness(t, nil)
		deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusTooManyRequests) }
		r := newTestRouter(t, h, deny)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v0/tasks/restart", http.NoBody))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		code, _ := getHealth(t, r, "/health")
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestNewServer(t *testing.T) {
	t.Run("Should require a configuration in the context", func(t *testing.T) {
		_, err := NewServer(context.Background())
		assert.Error(t, err)
	})

	t.Run("Should run cleanups in reverse order", func(t *testing.T) {
		ctx := config.ContextWithConfig(context.Background(), config.Default())
		s, err := NewServer(ctx)
		require.NoError(t, err)
		var order []int
		s.addCleanup(func() { order = append(order, 1) })
		s.addCleanup(func() { order = append(order, 2) })
		s.runCleanups()
		s.runCleanups()
		assert.Equal(t, []int{2, 1}, order)
	})
}

func TestServe(t *testing.T) {
	t.Run("Should stop every component when one fails", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 0
		s, err := NewServer(config.ContextWithConfig(context.Background(), cfg))
		require.NoError(t, err)
		s.router = gin.New()
		stopped := make(chan struct{})
		s.background = []Background{
			{Name: "waiter", Run: func(ctx context.Context) error {
				<-ctx.Done()
				close(stopped)
				return nil
			}},
			{Name: "broken", Run: func(context.Context) error { return errors.New("boom") }},
		}
		err = s.serve()
		assert.ErrorContains(t, err, "broken: boom")
		<-stopped
	})
}
