package server

import (
	"time"

	"github.com/dallosh/analysis/pkg/logger"
	"github.com/gin-gonic/gin"
)

// LoggerMiddleware attaches log to every request context and logs the
// outcome once the handler returns.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		reqLog := log.With("method", c.Request.Method, "path", path)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))
		c.Next()
		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()
		keyvals := []any{
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", status,
			"body_size", c.Writer.Size(),
			"path", path,
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			keyvals = append(keyvals, "error", msg)
		}
		if status >= 500 {
			log.Error("Request completed", keyvals...)
			return
		}
		log.Info("Request completed", keyvals...)
	}
}
