package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/livecss/pkg/response"
)

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health returns a status payload useful for readiness checks. Any failing check turns
// the response into a 503.
func Health(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(checks) == 0 {
			response.Success(c, http.StatusOK, gin.H{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(requestContext(c), 3*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			if err := check.Check(ctx); err != nil {
				results[check.Name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[check.Name] = "ok"
		}

		response.Success(c, code, gin.H{"status": status, "checks": results})
	}
}
