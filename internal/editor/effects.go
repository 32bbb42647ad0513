package editor

import "github.com/charlesng35/livecss/internal/models"

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Effect is an action requested by Reducer.Apply.
type Effect interface {
	effect()
}

type (
	// RenderPreview replaces the preview frame with Document.
	RenderPreview struct{ Document string }
	// PersistSnippet saves Snippet to the store.
	PersistSnippet struct{ Snippet models.Snippet }
	// RemoveSnippet deletes ID from the store.
	RemoveSnippet struct{ ID string }
	// ReloadSnippets re-reads the store listing.
	ReloadSnippets struct{}
	// Download offers Body to the user as Filename.
	Download struct {
		Filename string
		Body     []byte
	}
	// Notify shows a message to the user.
	Notify struct {
		Level   string
		Message string
	}
)

func (RenderPreview) effect()  {}
func (PersistSnippet) effect() {}
func (RemoveSnippet) effect()  {}
func (ReloadSnippets) effect() {}
func (Download) effect()       {}
func (Notify) effect()         {}
