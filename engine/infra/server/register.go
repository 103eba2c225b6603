package server

import (
	"context"

	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/dallosh/analysis/engine/infra/server/routes"
	tkrouter "github.com/dallosh/analysis/engine/task/router"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts health probes and the versioned task API.
// commandMiddleware wraps the lifecycle command routes only.
func RegisterRoutes(ctx context.Context, r *gin.Engine, state *appstate.State, commandMiddleware ...gin.HandlerFunc) {
	health := CreateHealthHandler(state)
	r.GET("/health", health)
	apiBase := r.Group(routes.Base())
	apiBase.GET("/health", health)
	tkrouter.Register(apiBase, commandMiddleware...)
	logger.FromContext(ctx).Info("Completed route registration", "base", routes.Base())
}
