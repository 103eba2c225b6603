package auth

import (
	"strings"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/gin-gonic/gin"
)

// UserHeader names the header carrying the acting user id set by the gateway.
const UserHeader = "X-User-ID"

const maxUserIDLength = 128

// ActorMiddleware records the acting user on the request context. Requests
// without a usable header act as core.SystemUser; authentication happens
// upstream.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if len(userID) > maxUserIDLength {
			logger.FromContext(c.Request.Context()).Debug("Ignoring oversized user header", "length", len(userID))
			userID = ""
		}
		if userID == "" {
			userID = core.SystemUser
		}
		ctx := core.ContextWithUser(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
