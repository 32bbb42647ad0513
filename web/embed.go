package web

import (
	"embed"
	"io/fs"
)

// staticFS embeds the editor bundle (web/dist) into the binary so the server can run
// without a separate asset directory.
//
//go:embed all:dist
var staticFS embed.FS

// FS returns the embedded bundle rooted at dist, so "index.html" is at the top level.
func FS() (fs.FS, error) {
	return fs.Sub(staticFS, "dist")
}
