package api

import (
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/livecss/internal/app"
	"github.com/charlesng35/livecss/internal/handlers"
	"github.com/charlesng35/livecss/internal/middleware"
	"github.com/charlesng35/livecss/internal/realtime"
	"github.com/charlesng35/livecss/internal/snippets"
)

// Dependencies carries the long-lived services the router mounts.
type Dependencies struct {
	Store *snippets.Store
	Codec *snippets.Codec
	// Hub is optional; without it the realtime endpoint answers 404.
	Hub *realtime.Hub
	// RateStore is optional; without it requests are not rate limited.
	RateStore middleware.RateStore
	// Assets holds the compiled editor bundle served for every non-API path.
	Assets       fs.FS
	HealthChecks []handlers.HealthCheck
}

// NewRouter builds the Gin engine, wires middleware and registers the API, preview,
// realtime and static asset routes.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("snippet store must be provided")
	}
	if deps.Assets == nil {
		return nil, fmt.Errorf("static assets must be provided")
	}
	if deps.Codec == nil {
		deps.Codec = snippets.NewCodec()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, deps.HealthChecks)
	registerMetricsRoutes(r, cfg)

	var notifier handlers.ChangeNotifier
	if deps.Hub != nil {
		notifier = deps.Hub
	}

	bodyLimit := middleware.BodyLimit(cfg.Snippets.MaxBodyBytes)
	snippetHandler := handlers.NewSnippetHandler(deps.Store, deps.Codec, notifier)
	previewHandler := handlers.NewPreviewHandler(deps.Store)

	// Only storage-backed routes are budgeted; preview composition is pure and runs on every edit.
	rateLimit := middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	api := r.Group("/api")
	registerSnippetRoutes(api, snippetHandler, previewHandler, bodyLimit, rateLimit)
	api.POST("/preview", bodyLimit, previewHandler.Compose)

	realtimeHandler := handlers.NewRealtimeHandler(deps.Hub)
	api.GET("/realtime", realtimeHandler.Stream)

	r.POST("/preview", bodyLimit, previewHandler.Compose)

	static := handlers.NewStaticHandler(deps.Assets)
	r.NoRoute(static.Serve)

	return r, nil
}

func registerSnippetRoutes(r *gin.RouterGroup, handler *handlers.SnippetHandler, preview *handlers.PreviewHandler, bodyLimit, rateLimit gin.HandlerFunc) {
	if r == nil || handler == nil {
		return
	}

	snippets := r.Group("/snippets", rateLimit)
	{
		snippets.GET("", handler.List)
		snippets.POST("", bodyLimit, handler.Create)
		snippets.POST("/export", bodyLimit, handler.ExportDraft)
		snippets.POST("/import", bodyLimit, handler.Import)
		snippets.GET("/:id", handler.Get)
		snippets.PUT("/:id", bodyLimit, handler.Update)
		snippets.DELETE("/:id", handler.Delete)
		snippets.GET("/:id/export", handler.Export)
		if preview != nil {
			snippets.GET("/:id/preview", preview.Snippet)
		}
	}
}

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, checks []handlers.HealthCheck) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		return
	}
	r.GET("/health", handlers.Health(checks...))
}

func registerMetricsRoutes(r *gin.Engine, cfg *app.Config) {
	if !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := cfg.Monitoring.Prometheus.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
