package middleware

import (
	"strconv"

	"izin-talep/internal/metrics"

	"github.com/gin-gonic/gin"
)

func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}
