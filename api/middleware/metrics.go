package middleware

import (
	"github.com/gin-gonic/gin"

	"lexanalyzer/metrics"
)

// Metrics counts requests by route template, so path parameters do not
// explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, path, c.Writer.Status())
	}
}
