package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/presenca-api/internal/service"
)

// Metrics records one observation per request, labelled by route template so
// student ids never become label values. Requests whose path starts with one of
// skipPrefixes (scrapes, health checks, docs) are served but not counted.
func Metrics(metricsSvc *service.MetricsService, skipPrefixes ...string) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, skipPrefixes) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

func skipped(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// routeLabel folds every request gin could not route into one series.
func routeLabel(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return "unmatched"
}
