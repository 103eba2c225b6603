package server

import (
	"context"
	"net/http"
	"sort"

	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/dallosh/analysis/engine/infra/server/router"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/dallosh/analysis/pkg/version"
	"github.com/gin-gonic/gin"
)

// Health endpoint
//
//	@Summary      Get server health
//	@Description  Reports broker and database readiness
//	@Tags         health
//	@Produce      json
//	@Success      200 {object} router.Response{data=map[string]any} "Service is ready"
//	@Failure      503 {object} router.Response{data=map[string]any} "A dependency is not ready"
//	@Router       /api/v0/health [get]
func CreateHealthHandler(state *appstate.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		ready, components := gatherComponentStatus(ctx, state)
		status := statusReady
		code := http.StatusOK
		if !ready {
			status = statusNotReady
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, router.Response{
			Status:  code,
			Message: status,
			Data: gin.H{
				"status":     status,
				"version":    version.Get().Version,
				"ready":      ready,
				"components": components,
			},
		})
	}
}

func gatherComponentStatus(ctx context.Context, state *appstate.State) (bool, gin.H) {
	results := state.CheckHealth(ctx)
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	ready := true
	components := gin.H{}
	for _, name := range names {
		err := results[name]
		if err == nil {
			components[name] = gin.H{"ready": true}
			continue
		}
		ready = false
		logger.FromContext(ctx).Warn("Readiness check failed", "component", name, "error", err)
		components[name] = gin.H{"ready": false, "error": err.Error()}
	}
	return ready, components
}
