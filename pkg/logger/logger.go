// Package logger installs the process slog handler and carries the request
// id through contexts so every log line of a search can be correlated.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the process-wide slog handler. format is "json" or text;
// level is any name slog understands ("debug", "WARN", "info+2"), unknown
// names mean info. A nil writer means stdout; command-line tools pass stderr
// so their results stay on stdout.
func Setup(level string, format string, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}

// FromContext returns the default logger tagged with the request id in ctx,
// if any.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if requestID := RequestID(ctx); requestID != "" {
		l = l.With("request_id", requestID)
	}
	return l
}
