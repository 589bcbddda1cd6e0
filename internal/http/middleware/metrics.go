package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatflow-backend/internal/observability"
)

// Metrics records per-route request counts and latency. Unmatched paths share
// one label so scanners cannot blow up cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		m.ApiInflightInc()
		start := time.Now()
		defer func() {
			m.ApiInflightDec()
			m.ObserveAPI(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
		}()
		c.Next()
	}
}
