package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/livecss/pkg/logger"
)

func TestLoggerWritesAccessEntry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.InfoLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.POST("/preview", func(c *gin.Context) {
		c.String(http.StatusOK, "<!DOCTYPE html>")
	})

	req := httptest.NewRequest(http.MethodPost, "/preview", nil)
	req.Header.Set(RequestIDHeader, "edit-42")
	req.Header.Set("User-Agent", "livecss-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entries := recorded.FilterMessage("request").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	require.Equal(t, "http", fields["module"])
	require.Equal(t, http.MethodPost, fields["method"])
	require.Equal(t, "/preview", fields["path"])
	require.EqualValues(t, http.StatusOK, fields["status"])
	require.Equal(t, "edit-42", fields["request_id"])
	require.Equal(t, "livecss-test", fields["user_agent"])
}

func TestLoggerOmitsRequestIDWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	r := gin.New()
	r.Use(Logger())
	r.GET("/api/snippets", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/snippets", nil))

	entries := recorded.FilterMessage("request").All()
	require.Len(t, entries, 1)
	require.NotContains(t, entries[0].ContextMap(), "request_id")
	require.NotContains(t, entries[0].ContextMap(), "route")
}

func TestLoggerLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	r := gin.New()
	r.Use(Logger())
	r.GET("/api/snippets/:id", func(c *gin.Context) {
		switch c.Param("id") {
		case "missing":
			c.Status(http.StatusNotFound)
		case "broken":
			_ = c.Error(errors.New("slot unreadable"))
			c.Status(http.StatusInternalServerError)
		default:
			c.Status(http.StatusOK)
		}
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/assets/*file", func(c *gin.Context) { c.String(http.StatusOK, "body{}") })

	for _, path := range []string{"/api/snippets/ok", "/api/snippets/missing", "/api/snippets/broken", "/health", "/assets/app.css"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := recorded.FilterMessage("request").All()
	require.Len(t, entries, 5)

	levels := make(map[string]zapcore.Level, len(entries))
	for _, entry := range entries {
		levels[entry.ContextMap()["path"].(string)] = entry.Level
	}
	require.Equal(t, map[string]zapcore.Level{
		"/api/snippets/ok":      zapcore.InfoLevel,
		"/api/snippets/missing": zapcore.WarnLevel,
		"/api/snippets/broken":  zapcore.ErrorLevel,
		"/health":               zapcore.DebugLevel,
		"/assets/app.css":       zapcore.DebugLevel,
	}, levels)

	broken := recorded.FilterField(zap.String("path", "/api/snippets/broken")).All()
	require.Len(t, broken, 1)
	require.Equal(t, "/api/snippets/:id", broken[0].ContextMap()["route"])
	require.Contains(t, broken[0].ContextMap()["errors"], "slot unreadable")

	assets := recorded.FilterField(zap.String("path", "/assets/app.css")).All()
	require.EqualValues(t, len("body{}"), assets[0].ContextMap()["bytes"])
}
