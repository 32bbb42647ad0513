package snippets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/charlesng35/livecss/internal/models"
	"github.com/charlesng35/livecss/pkg/logger"
	"github.com/charlesng35/livecss/pkg/metrics"
)

// Store keeps the whole snippet collection as one JSON array inside a Slot.
// Every mutation reads the full collection, modifies it and writes it back with a single Set.
type Store struct {
	slot Slot
	mu   sync.Mutex
	log  *zap.Logger
}

// NewStore constructs a Store over slot.
func NewStore(slot Slot) (*Store, error) {
	if slot == nil {
		return nil, errors.New("snippets: slot is required")
	}
	return &Store{slot: slot, log: logger.WithModule("snippets")}, nil
}

// List returns every stored snippet, most recently updated first.
// An absent, unreadable or malformed slot yields an empty list.
func (s *Store) List(ctx context.Context) []models.Snippet {
	ctx = ensuredContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.readLocked(ctx)
	metrics.SnippetOperations.WithLabelValues("list", metrics.Result(nil)).Inc()
	return collection
}

// Get returns the snippet with the given id.
func (s *Store) Get(ctx context.Context, id string) (*models.Snippet, error) {
	ctx = ensuredContext(ctx)
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snippet := range s.readLocked(ctx) {
		if snippet.ID == id {
			found := snippet
			return &found, nil
		}
	}
	return nil, ErrSnippetNotFound
}

// Save upserts snippet by id. An existing record keeps its createdAt; the stored
// record is returned. Write failures are logged and returned as ErrStorageWriteFailed.
func (s *Store) Save(ctx context.Context, snippet models.Snippet) (models.Snippet, error) {
	if strings.TrimSpace(snippet.ID) == "" {
		return models.Snippet{}, errors.New("snippets: id is required")
	}
	ctx = ensuredContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.readLocked(ctx)
	collection := make([]models.Snippet, 0, len(existing)+1)
	for _, current := range existing {
		if current.ID == snippet.ID {
			snippet.CreatedAt = current.CreatedAt
			continue
		}
		collection = append(collection, current)
	}
	collection = append(collection, snippet)
	sortByUpdated(collection)

	err := s.writeLocked(ctx, "save", collection)
	metrics.SnippetOperations.WithLabelValues("save", metrics.Result(err)).Inc()
	if err != nil {
		return models.Snippet{}, err
	}
	return snippet, nil
}

// Delete removes the snippet with the given id. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx = ensuredContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.readLocked(ctx)
	collection := make([]models.Snippet, 0, len(existing))
	for _, current := range existing {
		if current.ID != id {
			collection = append(collection, current)
		}
	}

	err := s.writeLocked(ctx, "delete", collection)
	metrics.SnippetOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	return err
}

func (s *Store) readLocked(ctx context.Context) []models.Snippet {
	collection, err := s.decodeLocked(ctx)
	if err != nil {
		kind := "unavailable"
		if errors.Is(err, ErrStorageCorrupt) {
			kind = "corrupt"
		}
		metrics.StorageRecoveries.WithLabelValues(kind).Inc()
		s.log.Warn("snippet slot unreadable, using empty collection", zap.String("kind", kind), zap.Error(err))
		return []models.Snippet{}
	}
	sortByUpdated(collection)
	return collection
}

func (s *Store) decodeLocked(ctx context.Context) ([]models.Snippet, error) {
	raw, ok, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !ok || len(raw) == 0 {
		return []models.Snippet{}, nil
	}

	var collection []models.Snippet
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	if collection == nil {
		collection = []models.Snippet{}
	}
	return collection, nil
}

func (s *Store) writeLocked(ctx context.Context, op string, collection []models.Snippet) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}

	payload, err := json.Marshal(collection)
	if err == nil {
		err = s.slot.Set(ctx, payload)
	}
	if err != nil {
		s.log.Error("snippet slot write failed", zap.String("op", op), zap.Int("count", len(collection)), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func sortByUpdated(collection []models.Snippet) {
	sort.SliceStable(collection, func(i, j int) bool {
		return collection[i].UpdatedAt > collection[j].UpdatedAt
	})
}
