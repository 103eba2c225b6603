package size

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit caps lifecycle command bodies, which only carry identifiers.
const DefaultBodyLimit int64 = 1 << 20

// BodySizeLimiter limits the request body size for the route group.
func BodySizeLimiter(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
