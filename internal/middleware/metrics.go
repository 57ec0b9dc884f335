package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursevault-api/internal/service"
)

// UnmatchedRoute labels requests that hit no registered route. Raw paths
// would put every guessed certificate URL into its own series.
const UnmatchedRoute = "unmatched"

// Metrics records method, route template, status and latency for every
// request. A nil service turns it into a pass-through.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
