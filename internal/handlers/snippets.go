package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/livecss/internal/models"
	"github.com/charlesng35/livecss/internal/snippets"
	appErrors "github.com/charlesng35/livecss/pkg/errors"
	"github.com/charlesng35/livecss/pkg/metrics"
	"github.com/charlesng35/livecss/pkg/response"
	appValidator "github.com/charlesng35/livecss/pkg/validator"
)

// ChangeNotifier is told about every successful write to the snippet collection.
type ChangeNotifier interface {
	SnippetsChanged(op, id string)
}

// SnippetHandler exposes the snippet store and portable transfer over HTTP.
type SnippetHandler struct {
	store    *snippets.Store
	codec    *snippets.Codec
	notifier ChangeNotifier
}

// NewSnippetHandler constructs a snippet handler. notifier may be nil.
func NewSnippetHandler(store *snippets.Store, codec *snippets.Codec, notifier ChangeNotifier) *SnippetHandler {
	if codec == nil {
		codec = snippets.NewCodec()
	}
	return &SnippetHandler{store: store, codec: codec, notifier: notifier}
}

type snippetRequest struct {
	Title     *string `json:"title" validate:"required"`
	HTML      *string `json:"html" validate:"required"`
	CSS       *string `json:"css" validate:"required"`
	CreatedAt int64   `json:"createdAt" validate:"gte=0"`
}

type draftRequest struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
	CSS   string `json:"css"`
}

// List GET /api/snippets
func (h *SnippetHandler) List(c *gin.Context) {
	ctx, cancel := storageContext(c)
	defer cancel()
	list := h.store.List(ctx)
	response.SuccessWithMeta(c, http.StatusOK, list, &response.Meta{Total: len(list)})
}

// Get GET /api/snippets/:id
func (h *SnippetHandler) Get(c *gin.Context) {
	ctx, cancel := storageContext(c)
	defer cancel()
	snippet, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, snippetError(err))
		return
	}
	response.Success(c, http.StatusOK, snippet)
}

// Create POST /api/snippets
func (h *SnippetHandler) Create(c *gin.Context) {
	var req snippetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	now := h.codec.Now()
	snippet := models.Snippet{
		ID:        h.codec.NewID(),
		Title:     *req.Title,
		HTML:      *req.HTML,
		CSS:       *req.CSS,
		CreatedAt: now,
		UpdatedAt: now,
	}

	h.save(c, http.StatusCreated, snippet)
}

// Update PUT /api/snippets/:id
func (h *SnippetHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := appValidator.ValidateVar(id, appValidator.SnippetIDTag); err != nil {
		response.Error(c, appErrors.NewBadRequest("id must be 1-64 letters, digits, '-' or '_'"))
		return
	}

	var req snippetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	now := h.codec.Now()
	createdAt := req.CreatedAt
	if createdAt <= 0 {
		createdAt = now
	}

	h.save(c, http.StatusOK, models.Snippet{
		ID:        id,
		Title:     *req.Title,
		HTML:      *req.HTML,
		CSS:       *req.CSS,
		CreatedAt: createdAt,
		UpdatedAt: now,
	})
}

// Delete DELETE /api/snippets/:id
func (h *SnippetHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx, cancel := storageContext(c)
	defer cancel()
	if err := h.store.Delete(ctx, id); err != nil {
		response.Error(c, snippetError(err))
		return
	}

	h.notify("delete", id)
	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// Export GET /api/snippets/:id/export
func (h *SnippetHandler) Export(c *gin.Context) {
	ctx, cancel := storageContext(c)
	defer cancel()
	snippet, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, snippetError(err))
		return
	}
	h.download(c, *snippet)
}

// ExportDraft POST /api/snippets/export exports unsaved editor content under a fresh id.
func (h *SnippetHandler) ExportDraft(c *gin.Context) {
	var req draftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.download(c, h.codec.Fresh(req.Title, req.HTML, req.CSS))
}

// Import POST /api/snippets/import accepts a portable document as the raw body or as a
// multipart "file" field. The result is saved unless ?persist=false.
func (h *SnippetHandler) Import(c *gin.Context) {
	payload, err := readImportPayload(c)
	if err != nil {
		response.Error(c, bindError(err))
		return
	}

	snippet, err := h.codec.FromPortable(payload)
	metrics.SnippetOperations.WithLabelValues("import", metrics.Result(err)).Inc()
	if err != nil {
		response.Error(c, snippetError(err))
		return
	}

	persist := true
	if raw := strings.TrimSpace(c.Query("persist")); raw != "" {
		if parsed, parseErr := strconv.ParseBool(raw); parseErr == nil {
			persist = parsed
		}
	}
	if !persist {
		response.Success(c, http.StatusOK, snippet)
		return
	}

	h.save(c, http.StatusCreated, snippet)
}

func (h *SnippetHandler) save(c *gin.Context, status int, snippet models.Snippet) {
	ctx, cancel := storageContext(c)
	defer cancel()
	stored, err := h.store.Save(ctx, snippet)
	if err != nil {
		response.Error(c, snippetError(err))
		return
	}

	h.notify("save", stored.ID)
	response.Success(c, status, stored)
}

func (h *SnippetHandler) download(c *gin.Context, snippet models.Snippet) {
	body, err := h.codec.ToPortable(snippet)
	metrics.SnippetOperations.WithLabelValues("export", metrics.Result(err)).Inc()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Snippet could not be exported"))
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": snippets.ExportFilename(snippet.Title)})
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *SnippetHandler) notify(op, id string) {
	if h.notifier != nil {
		h.notifier.SnippetsChanged(op, id)
	}
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	if c.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Request.Body)
}
