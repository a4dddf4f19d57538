package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/oraculo/internal/metrics"
)

// Metrics counts requests by method, route and status.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.HTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}
