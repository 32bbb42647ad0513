package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/livecss/pkg/metrics"
)

// Route labels for requests that matched no registered route.
const (
	staticRouteLabel     = "static"
	unknownAPIRouteLabel = "/api/*"
)

// Metrics records request latency per registered route. Paths served by the static
// fallback share one label so client-side routes cannot grow the series count, and
// websocket upgrades are skipped because their duration is the connection lifetime.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status == http.StatusSwitchingProtocols {
			return
		}

		metrics.APILatency.
			WithLabelValues(c.Request.Method, routeLabel(c), strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	path := c.Request.URL.Path
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		return unknownAPIRouteLabel
	}
	return staticRouteLabel
}
