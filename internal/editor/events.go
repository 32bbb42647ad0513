package editor

import "github.com/charlesng35/livecss/internal/models"

// Event is an input to Reducer.Apply.
type Event interface {
	event()
}

type (
	// EditHTML replaces the markup.
	EditHTML struct{ Value string }
	// EditCSS replaces the stylesheet.
	EditCSS struct{ Value string }
	// Rename replaces the title.
	Rename struct{ Title string }
	// ToggleAutoUpdate flips live re-rendering on edits.
	ToggleAutoUpdate struct{}
	// ToggleTheme flips dark mode.
	ToggleTheme struct{}
	// Refresh recomposes the preview on demand.
	Refresh struct{}
	// Save writes the editor content to the current snippet, or a new one.
	Save struct{}
	// Load copies a listed snippet into the editor.
	Load struct{ ID string }
	// Delete removes a stored snippet.
	Delete struct{ ID string }
	// Reset restores the default content.
	Reset struct{}
	// Export downloads the editor content as a new portable document.
	Export struct{}
	// ExportSnippet downloads a stored snippet.
	ExportSnippet struct{ ID string }
	// Import loads a portable document into the editor.
	Import struct{ Payload []byte }
	// SnippetsLoaded carries a fresh listing from the store.
	SnippetsLoaded struct{ Snippets []models.Snippet }
	// PersistFailed reports a store write that did not happen.
	PersistFailed struct {
		Op  string
		Err error
	}
)

func (EditHTML) event()         {}
func (EditCSS) event()          {}
func (Rename) event()           {}
func (ToggleAutoUpdate) event() {}
func (ToggleTheme) event()      {}
func (Refresh) event()          {}
func (Save) event()             {}
func (Load) event()             {}
func (Delete) event()           {}
func (Reset) event()            {}
func (Export) event()           {}
func (ExportSnippet) event()    {}
func (Import) event()           {}
func (SnippetsLoaded) event()   {}
func (PersistFailed) event()    {}
