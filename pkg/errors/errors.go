package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingIndexArtifact = errors.New("missing index artifact")
	ErrCorruptSnapshot      = errors.New("corrupt index snapshot")
	ErrTermTooLong          = errors.New("term normalizes to more than one token")
	ErrEmptyQueryText       = errors.New("text has no searchable terms")
	ErrDuplicateDocument    = errors.New("duplicate document id")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrEmptyIndex           = errors.New("index contains no documents")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternal             = errors.New("internal error")
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

// Is reports whether any error in err's chain matches target. It is
// re-exported so callers importing this package as apperrors do not also
// need the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTermTooLong), errors.Is(err, ErrEmptyQueryText), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, ErrMissingIndexArtifact), errors.Is(err, ErrEmptyIndex):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
