package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/company-grader/internal/catalog"
	"github.com/jonathan/company-grader/internal/scores"
)

// ErrMissingGenerationKey indicates the generation API key was not
// configured. This is a configuration error, not a transient one, and is
// never retried.
type ErrMissingGenerationKey struct{}

func (e ErrMissingGenerationKey) Error() string {
	return "GEMINI_API_KEY is not set"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var malformed *scores.ErrMalformed
	switch {
	case errors.Is(err, scores.ErrNoRecord):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrEmptyCatalog):
		return http.StatusInternalServerError
	case errors.As(err, &malformed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
