package editor

import (
	"errors"
	"fmt"

	"github.com/charlesng35/livecss/internal/models"
	"github.com/charlesng35/livecss/internal/preview"
	"github.com/charlesng35/livecss/internal/snippets"
)

// Reducer computes editor transitions. It never touches storage itself.
type Reducer struct {
	codec *snippets.Codec
}

// NewReducer returns a Reducer that mints ids and timestamps through codec.
// A nil codec selects snippets.NewCodec().
func NewReducer(codec *snippets.Codec) *Reducer {
	if codec == nil {
		codec = snippets.NewCodec()
	}
	return &Reducer{codec: codec}
}

// Initial returns the start-up state for the given listing and its first render.
func (r *Reducer) Initial(list []models.Snippet) (State, []Effect) {
	state := State{
		HTML:       DefaultHTML,
		CSS:        DefaultCSS,
		Title:      DefaultTitle,
		AutoUpdate: true,
		Snippets:   cloneSnippets(list),
	}
	return recompose(state)
}

// Apply returns the state following event and the effects to run.
func (r *Reducer) Apply(state State, event Event) (State, []Effect) {
	if _, ok := event.(SnippetsLoaded); !ok {
		state.Notice = ""
	}

	switch ev := event.(type) {
	case EditHTML:
		state.HTML = ev.Value
		return edited(state)

	case EditCSS:
		state.CSS = ev.Value
		return edited(state)

	case Rename:
		state.Title = ev.Title
		return state, nil

	case ToggleAutoUpdate:
		state.AutoUpdate = !state.AutoUpdate
		if state.AutoUpdate && state.Stale {
			return recompose(state)
		}
		return state, nil

	case ToggleTheme:
		state.DarkMode = !state.DarkMode
		return state, nil

	case Refresh:
		return recompose(state)

	case Save:
		return r.save(state)

	case Load:
		snippet, ok := state.find(ev.ID)
		if !ok {
			return notify(state, LevelError, fmt.Sprintf("Snippet %q no longer exists", ev.ID))
		}
		state.HTML = snippet.HTML
		state.CSS = snippet.CSS
		state.Title = snippet.Title
		state.CurrentID = snippet.ID
		state.CreatedAt = snippet.CreatedAt
		return recompose(state)

	case Delete:
		if ev.ID == "" {
			return state, nil
		}
		if state.CurrentID == ev.ID {
			state.CurrentID = ""
			state.CreatedAt = 0
			state.Title = DefaultTitle
		}
		return state, []Effect{RemoveSnippet{ID: ev.ID}, ReloadSnippets{}}

	case Reset:
		state.HTML = DefaultHTML
		state.CSS = DefaultCSS
		state.Title = DefaultTitle
		state.CurrentID = ""
		state.CreatedAt = 0
		return recompose(state)

	case Export:
		return r.download(state, r.codec.Fresh(state.Title, state.HTML, state.CSS))

	case ExportSnippet:
		snippet, ok := state.find(ev.ID)
		if !ok {
			return notify(state, LevelError, fmt.Sprintf("Snippet %q no longer exists", ev.ID))
		}
		return r.download(state, snippet)

	case Import:
		snippet, err := r.codec.FromPortable(ev.Payload)
		if err != nil {
			return notify(state, LevelError, importMessage(err))
		}
		state.HTML = snippet.HTML
		state.CSS = snippet.CSS
		state.Title = snippet.Title
		state.CurrentID = snippet.ID
		state.CreatedAt = snippet.CreatedAt
		next, effects := recompose(state)
		next.Notice = fmt.Sprintf("Imported %q", snippet.Title)
		return next, append(effects, Notify{Level: LevelInfo, Message: next.Notice})

	case SnippetsLoaded:
		state.Snippets = cloneSnippets(ev.Snippets)
		return state, nil

	case PersistFailed:
		message := "Could not persist snippet"
		if ev.Op != "" {
			message = fmt.Sprintf("Could not %s snippet", ev.Op)
		}
		if ev.Err != nil {
			message += ": " + ev.Err.Error()
		}
		return notify(state, LevelError, message)
	}

	return state, nil
}

func (r *Reducer) save(state State) (State, []Effect) {
	now := r.codec.Now()

	id := state.CurrentID
	if id == "" {
		id = r.codec.NewID()
	}

	createdAt := now
	if stored, ok := state.find(id); ok && stored.CreatedAt > 0 {
		createdAt = stored.CreatedAt
	} else if state.CreatedAt > 0 {
		createdAt = state.CreatedAt
	}

	snippet := models.Snippet{
		ID:        id,
		Title:     state.Title,
		HTML:      state.HTML,
		CSS:       state.CSS,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}

	state.CurrentID = id
	state.CreatedAt = createdAt
	return state, []Effect{PersistSnippet{Snippet: snippet}, ReloadSnippets{}}
}

func (r *Reducer) download(state State, snippet models.Snippet) (State, []Effect) {
	body, err := r.codec.ToPortable(snippet)
	if err != nil {
		return notify(state, LevelError, "Could not export snippet")
	}
	return state, []Effect{Download{Filename: snippets.ExportFilename(snippet.Title), Body: body}}
}

func edited(state State) (State, []Effect) {
	if !state.AutoUpdate {
		state.Stale = true
		return state, nil
	}
	return recompose(state)
}

func recompose(state State) (State, []Effect) {
	state.Document = preview.Compose(state.HTML, state.CSS)
	state.Stale = false
	return state, []Effect{RenderPreview{Document: state.Document}}
}

func notify(state State, level, message string) (State, []Effect) {
	state.Notice = message
	return state, []Effect{Notify{Level: level, Message: message}}
}

func importMessage(err error) string {
	var importErr *snippets.ImportError
	if errors.As(err, &importErr) && importErr.Reason != "" {
		return "Invalid snippet file: " + importErr.Reason
	}
	return "Invalid snippet file"
}

func cloneSnippets(list []models.Snippet) []models.Snippet {
	out := make([]models.Snippet, len(list))
	copy(out, list)
	return out
}
