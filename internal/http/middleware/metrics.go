package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/observability"
)

// statusClientClosed is recorded when the caller hung up before a response
// was written.
const statusClientClosed = 499

// Metrics records request counts and latency by route template. Prometheus
// scrapes of /metrics are not counted.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		status := c.Writer.Status()
		if !c.Writer.Written() && errors.Is(c.Request.Context().Err(), context.Canceled) {
			status = statusClientClosed
		}
		m.ObserveAPI(c.Request.Method, route, status, time.Since(start))
	}
}
