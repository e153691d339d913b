package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"term too long", ErrTermTooLong, http.StatusBadRequest},
		{"empty query", fmt.Errorf("idf: %w", ErrEmptyQueryText), http.StatusBadRequest},
		{"missing artifact", fmt.Errorf("load: %w", ErrMissingIndexArtifact), http.StatusServiceUnavailable},
		{"empty index", ErrEmptyIndex, http.StatusServiceUnavailable},
		{"duplicate", ErrDuplicateDocument, http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Fatalf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d out of range", -1)
	if !Is(err, ErrInvalidInput) {
		t.Fatal("expected AppError to unwrap to its sentinel")
	}
	if got, want := err.Error(), "invalid input: limit -1 out of range"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
