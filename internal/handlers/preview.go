package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/livecss/internal/preview"
	"github.com/charlesng35/livecss/internal/snippets"
	"github.com/charlesng35/livecss/pkg/metrics"
	"github.com/charlesng35/livecss/pkg/response"
)

// PreviewHandler serves composed preview documents. Every response carries the sandbox
// policy so the document runs in an opaque origin.
type PreviewHandler struct {
	store *snippets.Store
}

// NewPreviewHandler constructs a preview handler. store may be nil when only ad-hoc
// composition is needed.
func NewPreviewHandler(store *snippets.Store) *PreviewHandler {
	return &PreviewHandler{store: store}
}

type previewRequest struct {
	HTML string `json:"html" form:"html"`
	CSS  string `json:"css" form:"css"`
}

// Compose POST /api/preview and POST /preview. Accepts JSON or form fields html and css;
// the form variant is what the editor posts into its preview frame.
func (h *PreviewHandler) Compose(c *gin.Context) {
	var req previewRequest
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBind(&req)
	}
	if err != nil {
		response.Error(c, bindError(err))
		return
	}

	writeDocument(c, preview.Compose(req.HTML, req.CSS), false)
}

// Snippet GET /api/snippets/:id/preview
func (h *PreviewHandler) Snippet(c *gin.Context) {
	if h.store == nil {
		response.Error(c, errSnippetNotFound)
		return
	}

	ctx, cancel := storageContext(c)
	defer cancel()
	snippet, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, snippetError(err))
		return
	}

	writeDocument(c, preview.Compose(snippet.HTML, snippet.CSS), true)
}

func writeDocument(c *gin.Context, document string, cacheable bool) {
	metrics.PreviewCompositions.WithLabelValues("http").Inc()

	body := []byte(document)
	c.Header("Content-Security-Policy", preview.ContentSecurityPolicy)
	c.Header("X-Frame-Options", "SAMEORIGIN")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Referrer-Policy", "no-referrer")

	if !cacheable {
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
		return
	}

	etag := contentETag(body)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}
