package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/livecss/internal/app"
	"github.com/charlesng35/livecss/internal/handlers/testutil"
	"github.com/charlesng35/livecss/internal/models"
)

var fixedNow = time.UnixMilli(1_700_000_000_000).UTC()

func newSnippetEnv(t *testing.T, opts ...testutil.Option) *testutil.Env {
	t.Helper()
	opts = append([]testutil.Option{testutil.WithCodec(testutil.FixedCodec(fixedNow))}, opts...)
	return testutil.NewEnv(t, opts...)
}

func decodeSnippet(t *testing.T, resp testutil.APIResponse) models.Snippet {
	t.Helper()
	var snippet models.Snippet
	testutil.DecodeInto(t, resp.Data, &snippet)
	return snippet
}

func TestSnippetHandlerLifecycle(t *testing.T) {
	env := newSnippetEnv(t)
	nowMillis := fixedNow.UnixMilli()

	created := env.Request(http.MethodPost, "/api/snippets", map[string]any{
		"title": "Card",
		"html":  "<div class=\"card\"></div>",
		"css":   ".card { color: red; }",
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	snippet := decodeSnippet(t, testutil.DecodeResponse(t, created))
	require.Equal(t, models.Snippet{
		ID:        "id-1",
		Title:     "Card",
		HTML:      "<div class=\"card\"></div>",
		CSS:       ".card { color: red; }",
		CreatedAt: nowMillis,
		UpdatedAt: nowMillis,
	}, snippet)

	list := env.Request(http.MethodGet, "/api/snippets", nil)
	require.Equal(t, http.StatusOK, list.Code)
	listResp := testutil.DecodeResponse(t, list)
	require.NotNil(t, listResp.Meta)
	require.Equal(t, 1, listResp.Meta.Total)
	var items []models.Snippet
	testutil.DecodeInto(t, listResp.Data, &items)
	require.Equal(t, []models.Snippet{snippet}, items)

	got := env.Request(http.MethodGet, "/api/snippets/id-1", nil)
	require.Equal(t, http.StatusOK, got.Code)
	require.Equal(t, snippet, decodeSnippet(t, testutil.DecodeResponse(t, got)))

	updated := env.Request(http.MethodPut, "/api/snippets/id-1", map[string]any{
		"title":     "Card v2",
		"html":      "<div></div>",
		"css":       "",
		"createdAt": 42,
	})
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	updatedSnippet := decodeSnippet(t, testutil.DecodeResponse(t, updated))
	require.Equal(t, "Card v2", updatedSnippet.Title)
	require.Equal(t, nowMillis, updatedSnippet.CreatedAt, "stored createdAt wins over the request")
	require.Equal(t, nowMillis, updatedSnippet.UpdatedAt)

	deleted := env.Request(http.MethodDelete, "/api/snippets/id-1", nil)
	require.Equal(t, http.StatusOK, deleted.Code)
	var deletedPayload map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, deleted).Data, &deletedPayload)
	require.Equal(t, "id-1", deletedPayload["id"])
	require.Equal(t, true, deletedPayload["deleted"])

	missing := env.Request(http.MethodGet, "/api/snippets/id-1", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
	missingResp := testutil.DecodeResponse(t, missing)
	require.False(t, missingResp.Success)
	require.Equal(t, "snippet.not_found", missingResp.Error.Code)

	again := env.Request(http.MethodDelete, "/api/snippets/id-1", nil)
	require.Equal(t, http.StatusOK, again.Code)
}

func TestSnippetHandlerPutCreatesWithGivenID(t *testing.T) {
	env := newSnippetEnv(t)

	resp := env.Request(http.MethodPut, "/api/snippets/custom", map[string]any{
		"title": "Custom",
		"html":  "",
		"css":   "",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snippet := decodeSnippet(t, testutil.DecodeResponse(t, resp))
	require.Equal(t, "custom", snippet.ID)
	require.Equal(t, fixedNow.UnixMilli(), snippet.CreatedAt)

	stored, err := env.Store.Get(context.Background(), "custom")
	require.NoError(t, err)
	require.Equal(t, "Custom", stored.Title)
}

func TestSnippetHandlerPutRejectsMalformedID(t *testing.T) {
	env := newSnippetEnv(t)
	payload := map[string]any{"title": "x", "html": "", "css": ""}

	for _, path := range []string{"/api/snippets/bad%20id", "/api/snippets/" + strings.Repeat("a", 65)} {
		resp := env.Request(http.MethodPut, path, payload)
		require.Equal(t, http.StatusBadRequest, resp.Code, path)
		require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, resp).Error.Code)
	}

	require.Empty(t, env.Store.List(context.Background()))
}

func TestSnippetHandlerValidation(t *testing.T) {
	env := newSnippetEnv(t)

	resp := env.Request(http.MethodPost, "/api/snippets", map[string]any{
		"title": "No stylesheet",
		"html":  "<p></p>",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	body := testutil.DecodeResponse(t, resp)
	require.Equal(t, "BAD_REQUEST", body.Error.Code)
	require.Contains(t, body.Error.Message, "css is required")

	resp = env.RequestRaw(http.MethodPost, "/api/snippets", "application/json", []byte("{not json"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "invalid JSON payload", testutil.DecodeResponse(t, resp).Error.Message)

	resp = env.Request(http.MethodPost, "/api/snippets", map[string]any{
		"title":     "Negative",
		"html":      "",
		"css":       "",
		"createdAt": -1,
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, testutil.DecodeResponse(t, resp).Error.Message, "createdat must be at least 0")
}

func TestSnippetHandlerRejectsOversizedBody(t *testing.T) {
	env := newSnippetEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.Snippets.MaxBodyBytes = 64
	}))

	resp := env.Request(http.MethodPost, "/api/snippets", map[string]any{
		"title": "Big",
		"html":  string(bytes.Repeat([]byte("x"), 256)),
		"css":   "",
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	require.Equal(t, "PAYLOAD_TOO_LARGE", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestSnippetHandlerSurfacesWriteFailures(t *testing.T) {
	env := newSnippetEnv(t, testutil.WithSlot(&failingSlot{}))

	resp := env.Request(http.MethodPost, "/api/snippets", map[string]any{
		"title": "Lost",
		"html":  "",
		"css":   "",
	})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	body := testutil.DecodeResponse(t, resp)
	require.Equal(t, "storage.write_failed", body.Error.Code)
	require.NotContains(t, body.Error.Message, "disk full")

	list := env.Request(http.MethodGet, "/api/snippets", nil)
	require.Equal(t, http.StatusOK, list.Code)
	require.Equal(t, 0, testutil.DecodeResponse(t, list).Meta.Total)
}

func TestSnippetHandlerExport(t *testing.T) {
	env := newSnippetEnv(t)
	_, err := env.Store.Save(context.Background(), models.Snippet{
		ID: "abc", Title: "My Page!", HTML: "<h1>Hi</h1>", CSS: "h1{}", CreatedAt: 10, UpdatedAt: 20,
	})
	require.NoError(t, err)

	resp := env.Request(http.MethodGet, "/api/snippets/abc/export", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "attachment; filename=my_page_.json", resp.Header().Get("Content-Disposition"))
	require.Contains(t, resp.Header().Get("Content-Type"), "application/json")
	require.Contains(t, resp.Body.String(), "\n  \"title\": \"My Page!\"")
	require.Contains(t, resp.Body.String(), "\"createdAt\": 10")

	missing := env.Request(http.MethodGet, "/api/snippets/nope/export", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestSnippetHandlerExportDraft(t *testing.T) {
	env := newSnippetEnv(t)

	resp := env.Request(http.MethodPost, "/api/snippets/export", map[string]any{
		"title": "",
		"html":  "<p>draft</p>",
		"css":   "p{}",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, "attachment; filename=snippet.json", resp.Header().Get("Content-Disposition"))
	require.Contains(t, resp.Body.String(), "\"id\": \"id-1\"")
	require.Contains(t, resp.Body.String(), "\"html\": \"<p>draft</p>\"")

	require.Empty(t, env.Store.List(context.Background()), "exporting a draft must not persist it")
}

func TestSnippetHandlerImport(t *testing.T) {
	env := newSnippetEnv(t)
	document := []byte(`{"id":"old","title":"Imported","html":"<b>x</b>","css":"b{}","createdAt":5,"updatedAt":6,"extra":true}`)

	resp := env.RequestRaw(http.MethodPost, "/api/snippets/import", "application/json", document)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	snippet := decodeSnippet(t, testutil.DecodeResponse(t, resp))
	require.Equal(t, "id-1", snippet.ID)
	require.Equal(t, "Imported", snippet.Title)
	require.Equal(t, int64(5), snippet.CreatedAt)
	require.Equal(t, fixedNow.UnixMilli(), snippet.UpdatedAt)

	stored := env.Store.List(context.Background())
	require.Len(t, stored, 1)
	require.Equal(t, snippet, stored[0])
}

func TestSnippetHandlerImportWithoutPersisting(t *testing.T) {
	env := newSnippetEnv(t)
	document := []byte(`{"title":"Preview only","html":"","css":""}`)

	resp := env.RequestRaw(http.MethodPost, "/api/snippets/import?persist=false", "application/json", document)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	snippet := decodeSnippet(t, testutil.DecodeResponse(t, resp))
	require.Equal(t, "Preview only", snippet.Title)
	require.Empty(t, env.Store.List(context.Background()))
}

func TestSnippetHandlerImportMultipart(t *testing.T) {
	env := newSnippetEnv(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "card.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(`{"title":"From file","html":"<i></i>","css":"i{}"}`))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp := env.RequestRaw(http.MethodPost, "/api/snippets/import", writer.FormDataContentType(), buf.Bytes())
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, "From file", decodeSnippet(t, testutil.DecodeResponse(t, resp)).Title)

	var empty bytes.Buffer
	emptyWriter := multipart.NewWriter(&empty)
	require.NoError(t, emptyWriter.WriteField("other", "value"))
	require.NoError(t, emptyWriter.Close())

	resp = env.RequestRaw(http.MethodPost, "/api/snippets/import", emptyWriter.FormDataContentType(), empty.Bytes())
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "file is required", testutil.DecodeResponse(t, resp).Error.Message)
}

func TestSnippetHandlerImportRejectsMalformedDocuments(t *testing.T) {
	env := newSnippetEnv(t)

	cases := map[string]struct {
		body   string
		reason string
	}{
		"missing css":   {body: `{"title":"x","html":""}`, reason: `missing field "css"`},
		"empty title":   {body: `{"title":"","html":"","css":""}`, reason: `field "title" must not be empty`},
		"not an object": {body: `[1,2]`, reason: "expected a JSON object"},
		"invalid json":  {body: `{"title":`, reason: "invalid JSON"},
		"empty body":    {body: ``, reason: "empty document"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := env.RequestRaw(http.MethodPost, "/api/snippets/import", "application/json", []byte(tc.body))
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			body := testutil.DecodeResponse(t, resp)
			require.Equal(t, "snippet.import_malformed", body.Error.Code)
			require.Contains(t, body.Error.Message, tc.reason)
		})
	}

	require.Empty(t, env.Store.List(context.Background()))
}

type failingSlot struct {
	value []byte
}

func (s *failingSlot) Get(context.Context) ([]byte, bool, error) {
	if s.value == nil {
		return nil, false, nil
	}
	return s.value, true, nil
}

func (s *failingSlot) Set(context.Context, []byte) error {
	return errors.New("disk full")
}
