// Package preview builds the self-contained document rendered in the sandboxed preview frame.
//
// Compose inserts the caller's markup and stylesheet verbatim. It performs no escaping, so
// the result must only ever be rendered in an isolated context: an iframe carrying
// FrameSandbox, or an HTTP response carrying ContentSecurityPolicy.
package preview

import "strings"

const (
	// FrameSandbox is the sandbox attribute for the preview iframe. Without allow-same-origin
	// the document runs in an opaque origin and cannot reach the host page's storage.
	FrameSandbox = "allow-scripts"

	// ContentSecurityPolicy is sent with every composed document served over HTTP.
	ContentSecurityPolicy = "sandbox allow-scripts allow-forms allow-modals allow-popups; " +
		"default-src * data: blob: 'unsafe-inline' 'unsafe-eval'"

	// EmptyState is rendered as the body when the markup is blank.
	EmptyState = `<div style="display: flex; align-items: center; justify-content: center; min-height: 100vh; color: #666; font-size: 18px; text-align: center; padding: 20px;">Start typing HTML to see the preview...</div>`
)

const baseStyles = `* {
  margin: 0;
  padding: 0;
  box-sizing: border-box;
}
html, body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  line-height: 1.6;
  color: #333;
  width: 100%;
  height: 100%;
  overflow: auto;
}
body {
  min-height: 100vh;
  display: flex;
  flex-direction: column;
}
* {
  max-width: 100%;
}
@media (max-aspect-ratio: 1/1) {
  body {
    min-height: auto;
    height: auto;
  }
}
`

const (
	documentHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Preview</title>
<style>
`
	documentBody = `</style>
</head>
<body>
`
	documentTail = `
</body>
</html>
`
)

// Compose returns the full preview document for html and css. It is pure: identical inputs
// always produce identical output.
func Compose(html, css string) string {
	body := html
	if strings.TrimSpace(body) == "" {
		body = EmptyState
	}

	var b strings.Builder
	b.Grow(len(documentHead) + len(baseStyles) + len(css) + len(documentBody) + len(body) + len(documentTail) + 1)
	b.WriteString(documentHead)
	b.WriteString(baseStyles)
	b.WriteString(css)
	b.WriteByte('\n')
	b.WriteString(documentBody)
	b.WriteString(body)
	b.WriteString(documentTail)
	return b.String()
}
