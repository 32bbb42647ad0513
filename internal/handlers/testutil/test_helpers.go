package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/livecss/internal/api"
	"github.com/charlesng35/livecss/internal/app"
	"github.com/charlesng35/livecss/internal/cache"
	"github.com/charlesng35/livecss/internal/editor"
	"github.com/charlesng35/livecss/internal/handlers"
	"github.com/charlesng35/livecss/internal/realtime"
	"github.com/charlesng35/livecss/internal/snippets"
	"github.com/charlesng35/livecss/pkg/response"
)

// IndexHTML is the entry document served by the test asset bundle.
const IndexHTML = `<!doctype html><html><head><title>livecss</title></head><body><div id="app"></div></body></html>`

// Env encapsulates a fully-wired API instance backed by an in-memory cache for handler tests.
type Env struct {
	T      *testing.T
	Config *app.Config
	Cache  *cache.MemoryStore
	Store  *snippets.Store
	Codec  *snippets.Codec
	Hub    *realtime.Hub
	Router *gin.Engine
}

type envOptions struct {
	slot      snippets.Slot
	codec     *snippets.Codec
	assets    fstest.MapFS
	configure []func(*app.Config)
	checks    []handlers.HealthCheck
}

// Option customises the test environment.
type Option func(*envOptions)

// WithSlot replaces the in-memory slot, e.g. with one that fails writes.
func WithSlot(slot snippets.Slot) Option {
	return func(o *envOptions) { o.slot = slot }
}

// WithCodec pins the clock and id generator used by the handlers.
func WithCodec(codec *snippets.Codec) Option {
	return func(o *envOptions) { o.codec = codec }
}

// WithAssets replaces the static bundle.
func WithAssets(assets fstest.MapFS) Option {
	return func(o *envOptions) { o.assets = assets }
}

// WithConfig mutates the default test configuration before the router is built.
func WithConfig(fn func(*app.Config)) Option {
	return func(o *envOptions) { o.configure = append(o.configure, fn) }
}

// WithHealthChecks registers dependency checks on /health.
func WithHealthChecks(checks ...handlers.HealthCheck) Option {
	return func(o *envOptions) { o.checks = append(o.checks, checks...) }
}

// DefaultAssets returns a minimal editor bundle.
func DefaultAssets() fstest.MapFS {
	return fstest.MapFS{
		"index.html":     {Data: []byte(IndexHTML)},
		"assets/app.js":  {Data: []byte("console.log('livecss');\n")},
		"assets/app.css": {Data: []byte("body { margin: 0; }\n")},
	}
}

// FixedCodec returns a codec with a constant clock and sequential ids ("id-1", "id-2", ...).
func FixedCodec(now time.Time) *snippets.Codec {
	next := 0
	return snippets.NewCodec(
		snippets.WithClock(func() time.Time { return now }),
		snippets.WithIDGenerator(func() string {
			next++
			return "id-" + strconv.Itoa(next)
		}),
	)
}

// NewEnv provisions a fresh handler test environment.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	options := envOptions{assets: DefaultAssets()}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := &app.Config{
		Storage:  app.StorageConfig{Backend: app.StorageMemory, Key: snippets.DefaultStorageKey},
		Snippets: app.SnippetsConfig{MaxBodyBytes: 1 << 20},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	for _, fn := range options.configure {
		fn(cfg)
	}

	memory := cache.NewMemoryStore()
	slot := options.slot
	if slot == nil {
		cacheSlot, err := snippets.NewCacheSlot(memory, cfg.Storage.Key)
		require.NoError(t, err)
		slot = cacheSlot
	}

	store, err := snippets.NewStore(slot)
	require.NoError(t, err)

	codec := options.codec
	if codec == nil {
		codec = snippets.NewCodec()
	}

	hub := realtime.NewHub(realtime.WithEditor(store, editor.NewReducer(codec)))

	router, err := api.NewRouter(cfg, api.Dependencies{
		Store:        store,
		Codec:        codec,
		Hub:          hub,
		Assets:       options.assets,
		HealthChecks: options.checks,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		Config: cfg,
		Cache:  memory,
		Store:  store,
		Codec:  codec,
		Hub:    hub,
		Router: router,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router. Non-nil bodies are JSON encoded.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req)
}

// RequestRaw sends body verbatim with the given content type.
func (e *Env) RequestRaw(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(e.T, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return e.Do(req)
}

// Do serves a prepared request.
func (e *Env) Do(req *http.Request) *httptest.ResponseRecorder {
	e.T.Helper()

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
