package snippets

import "errors"

var (
	// ErrStorageUnavailable indicates the slot could not be read.
	ErrStorageUnavailable = errors.New("snippets: storage unavailable")
	// ErrStorageCorrupt indicates the slot held something other than a JSON array of snippets.
	ErrStorageCorrupt = errors.New("snippets: storage corrupt")
	// ErrStorageWriteFailed indicates the collection could not be persisted.
	ErrStorageWriteFailed = errors.New("snippets: storage write failed")
	// ErrSnippetNotFound indicates the requested snippet does not exist.
	ErrSnippetNotFound = errors.New("snippets: snippet not found")
	// ErrImportMalformed is matched by every *ImportError.
	ErrImportMalformed = errors.New("snippets: malformed import")
)

// ImportError describes why a portable document was rejected. Reason is safe to show to users.
type ImportError struct {
	Reason string
}

func (e *ImportError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrImportMalformed.Error()
	}
	return ErrImportMalformed.Error() + ": " + e.Reason
}

// Is reports ErrImportMalformed as a match so callers can rely on errors.Is.
func (e *ImportError) Is(target error) bool {
	return target == ErrImportMalformed
}

func importFailure(reason string) error {
	return &ImportError{Reason: reason}
}
