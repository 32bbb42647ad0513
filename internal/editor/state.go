// Package editor models the playground UI as explicit state transitions. The Reducer is
// pure; a Session runs the store effects it asks for and hands the rest to its transport.
package editor

import "github.com/charlesng35/livecss/internal/models"

// DefaultTitle is the title of a fresh, unsaved editor.
const DefaultTitle = "Untitled Snippet"

// DefaultHTML is the markup shown on start and after a reset.
const DefaultHTML = `<!DOCTYPE html>
<html>
<head>
  <title>My Awesome Page</title>
</head>
<body>
  <div class="container">
    <h1>Welcome to Live CSS Playground!</h1>
    <p>Start editing the HTML and CSS to see live changes.</p>
    <button class="btn">Click me!</button>
  </div>
</body>
</html>`

// DefaultCSS is the stylesheet shown on start and after a reset.
const DefaultCSS = `body {
  font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
  margin: 0;
  padding: 20px;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  color: white;
}

.container {
  max-width: 800px;
  margin: 0 auto;
  text-align: center;
}

h1 {
  font-size: 3rem;
  margin-bottom: 1rem;
  text-shadow: 2px 2px 4px rgba(0,0,0,0.3);
}

p {
  font-size: 1.2rem;
  margin-bottom: 2rem;
  opacity: 0.9;
}

.btn {
  background: rgba(255,255,255,0.2);
  border: 2px solid rgba(255,255,255,0.3);
  color: white;
  padding: 12px 24px;
  font-size: 1.1rem;
  border-radius: 25px;
  cursor: pointer;
  transition: all 0.3s ease;
}

.btn:hover {
  background: rgba(255,255,255,0.3);
  transform: translateY(-2px);
  box-shadow: 0 5px 15px rgba(0,0,0,0.2);
}`

// State is everything the editor surface displays.
type State struct {
	HTML  string `json:"html"`
	CSS   string `json:"css"`
	Title string `json:"title"`
	// CurrentID is the id the next save writes to. Empty means a new snippet.
	CurrentID string `json:"currentId,omitempty"`
	// CreatedAt is the creation time carried by the loaded or imported snippet.
	CreatedAt  int64            `json:"createdAt,omitempty"`
	AutoUpdate bool             `json:"autoUpdate"`
	DarkMode   bool             `json:"darkMode"`
	Stale      bool             `json:"stale"`
	Document   string           `json:"-"`
	Snippets   []models.Snippet `json:"snippets"`
	Notice     string           `json:"notice,omitempty"`
}

func (s State) find(id string) (models.Snippet, bool) {
	for _, snippet := range s.Snippets {
		if snippet.ID == id {
			return snippet, true
		}
	}
	return models.Snippet{}, false
}
