package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// quietRoutes are polled by infrastructure and only logged when they fail.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

// RequestLogger writes one line per request once the handler chain is done,
// so caller and trace ids attached by later middleware are included.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if quietRoutes[route] && status < 500 {
			return
		}

		fields := append([]interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}, ctxutil.LogFields(c.Request.Context())...)
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}
