package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/livecss/pkg/errors"
	"github.com/charlesng35/livecss/pkg/response"
)

const indexFile = "index.html"

// contentTypes is the fixed extension table; anything else is served as application/octet-stream.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".map":   "application/json",
	".txt":   "text/plain; charset=utf-8",
}

// ContentType returns the response type for a file name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// StaticHandler serves the browser bundle. Paths that do not resolve to a file get the
// entry document so client-side routes survive a reload.
type StaticHandler struct {
	files fs.FS
}

// NewStaticHandler serves files from root.
func NewStaticHandler(root fs.FS) *StaticHandler {
	return &StaticHandler{files: root}
}

// Serve is installed as the router's NoRoute handler.
func (h *StaticHandler) Serve(c *gin.Context) {
	requestPath := c.Request.URL.Path
	if requestPath == "/api" || strings.HasPrefix(requestPath, "/api/") {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		response.Error(c, appErrors.New("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed))
		return
	}
	if h.files == nil {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+requestPath), "/")
	if name == "" {
		name = indexFile
	}

	body, err := h.read(name)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		name = indexFile
		body, err = h.read(indexFile)
		if errors.Is(err, fs.ErrNotExist) {
			c.String(http.StatusNotFound, "Not Found")
			return
		}
		if err != nil {
			c.String(http.StatusInternalServerError, "Internal Server Error")
			return
		}
	default:
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.write(c, name, body)
}

// read returns fs.ErrNotExist for missing files and directories alike.
func (h *StaticHandler) read(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrNotExist
	}

	info, err := fs.Stat(h.files, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(h.files, name)
}

func (h *StaticHandler) write(c *gin.Context, name string, body []byte) {
	etag := contentETag(body)
	c.Header("ETag", etag)
	if name == indexFile || strings.HasSuffix(name, ".html") {
		c.Header("Cache-Control", "no-cache")
	} else {
		c.Header("Cache-Control", "public, max-age=3600")
	}

	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}

	contentType := ContentType(name)
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.Itoa(len(body)))
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}
