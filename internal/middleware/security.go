package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultContentSecurityPolicy restricts the editor shell to same origin resources. Preview
	// documents are framed from this origin and replace the policy with their own sandbox.
	DefaultContentSecurityPolicy = "default-src 'self'; frame-src 'self'; form-action 'self'; img-src 'self' data:; object-src 'none'; base-uri 'self'"

	hstsValue = "max-age=31536000; includeSubDomains"
)

var staticSecurityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	// The legacy XSS auditor is disabled; the CSP covers injection.
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", DefaultContentSecurityPolicy},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

// SecurityHeaders sets the baseline response headers. Handlers may override any of them,
// as the preview handler does for framing and CSP. HSTS is only sent over HTTPS so a local
// plain-HTTP editor is not pinned to TLS.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		for _, kv := range staticSecurityHeaders {
			header.Set(kv[0], kv[1])
		}
		if isHTTPS(c) {
			header.Set("Strict-Transport-Security", hstsValue)
		}
		c.Next()
	}
}

func isHTTPS(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	proto, _, _ := strings.Cut(c.GetHeader("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
