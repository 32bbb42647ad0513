package editor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/charlesng35/livecss/internal/snippets"
	"github.com/charlesng35/livecss/pkg/logger"
	"github.com/charlesng35/livecss/pkg/metrics"
)

// ChangeFunc is called after a session changed the stored collection.
type ChangeFunc func(op, id string)

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithChangeListener registers fn to run after every successful store write.
func WithChangeListener(fn ChangeFunc) SessionOption {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithReducer overrides the reducer, mainly to pin clocks and ids in tests.
func WithReducer(r *Reducer) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.reducer = r
		}
	}
}

// Session owns one editor state and executes its store effects against a snippets.Store.
// A Session is not safe for concurrent use.
type Session struct {
	store    *snippets.Store
	reducer  *Reducer
	state    State
	onChange ChangeFunc
	log      *zap.Logger
}

// NewSession loads the listing from store and returns the session with its initial effects.
func NewSession(ctx context.Context, store *snippets.Store, opts ...SessionOption) (*Session, []Effect, error) {
	if store == nil {
		return nil, nil, errors.New("editor: snippet store is required")
	}

	s := &Session{
		store:   store,
		reducer: NewReducer(nil),
		log:     logger.WithModule("editor"),
	}
	for _, opt := range opts {
		opt(s)
	}

	state, effects := s.reducer.Initial(store.List(ctx))
	s.state = state
	return s, s.outward(effects), nil
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Dispatch applies event, runs any store effects and returns the effects meant for the user.
func (s *Session) Dispatch(ctx context.Context, event Event) []Effect {
	var out []Effect
	queue := []Event{event}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		state, effects := s.reducer.Apply(s.state, current)
		s.state = state

		for _, effect := range effects {
			switch eff := effect.(type) {
			case PersistSnippet:
				if _, err := s.store.Save(ctx, eff.Snippet); err != nil {
					s.log.Warn("save failed", zap.String("id", eff.Snippet.ID), zap.Error(err))
					queue = append(queue, PersistFailed{Op: "save", Err: err})
					continue
				}
				s.changed("save", eff.Snippet.ID)
			case RemoveSnippet:
				if err := s.store.Delete(ctx, eff.ID); err != nil {
					s.log.Warn("delete failed", zap.String("id", eff.ID), zap.Error(err))
					queue = append(queue, PersistFailed{Op: "delete", Err: err})
					continue
				}
				s.changed("delete", eff.ID)
			case ReloadSnippets:
				queue = append(queue, SnippetsLoaded{Snippets: s.store.List(ctx)})
			default:
				out = append(out, effect)
			}
		}
	}

	return s.outward(out)
}

func (s *Session) outward(effects []Effect) []Effect {
	for _, effect := range effects {
		if _, ok := effect.(RenderPreview); ok {
			metrics.PreviewCompositions.WithLabelValues("editor").Inc()
		}
	}
	return effects
}

func (s *Session) changed(op, id string) {
	if s.onChange != nil {
		s.onChange(op, id)
	}
}

// Reload refreshes the listing from the store.
func (s *Session) Reload(ctx context.Context) []Effect {
	return s.Dispatch(ctx, SnippetsLoaded{Snippets: s.store.List(ctx)})
}
