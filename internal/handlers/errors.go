package handlers

import (
	"errors"
	"net/http"

	"github.com/charlesng35/livecss/internal/snippets"
	appErrors "github.com/charlesng35/livecss/pkg/errors"
)

var (
	errSnippetNotFound = appErrors.New("snippet.not_found", "Snippet not found", http.StatusNotFound)
	errWriteFailed     = appErrors.New("storage.write_failed", "Snippet could not be saved", http.StatusInternalServerError)
	errImportMalformed = appErrors.New("snippet.import_malformed", "Invalid snippet file", http.StatusBadRequest)
)

// snippetError maps store and transfer errors onto API errors.
func snippetError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, snippets.ErrSnippetNotFound):
		return errSnippetNotFound.WithInternal(err)
	case errors.Is(err, snippets.ErrStorageWriteFailed):
		return errWriteFailed.WithInternal(err)
	case errors.Is(err, snippets.ErrImportMalformed):
		appErr := errImportMalformed.WithInternal(err)
		var importErr *snippets.ImportError
		if errors.As(err, &importErr) && importErr.Reason != "" {
			appErr.Message = "Invalid snippet file: " + importErr.Reason
		}
		return appErr
	default:
		return err
	}
}
