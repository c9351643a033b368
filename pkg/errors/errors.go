// Package errors defines the sentinel errors shared by the recommender
// services and maps them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
	ErrNotFound      = errors.New("not found")
	ErrUnavailable   = errors.New("dependency unavailable")
	ErrEmptyCorpus   = errors.New("no usable text in corpus")
	ErrModelNotFound = errors.New("vectorizer model not found")
	ErrEmptyIndex    = errors.New("no documents to index")

	ErrArtifactMissing   = errors.New("artifact missing")
	ErrArtifactMismatch  = errors.New("artifact pair mismatch")
	ErrDegenerateVector  = errors.New("zero-norm vector")
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// ArtifactMissingError reports which persisted artifact could not be found.
type ArtifactMissingError struct {
	Artifact string
	Path     string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.Artifact, e.Path)
}

func (e *ArtifactMissingError) Unwrap() error {
	return ErrArtifactMissing
}

// MissingArtifact builds an ArtifactMissingError for the named artifact.
func MissingArtifact(artifact, path string) error {
	return &ArtifactMissingError{Artifact: artifact, Path: path}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrArtifactMissing),
		errors.Is(err, ErrArtifactMismatch),
		errors.Is(err, ErrEmptyIndex),
		errors.Is(err, ErrModelNotFound),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}

}
