// Package tracing times request phases as a tree of spans carried in the
// context. A finished root span is written to the request logger at debug
// level, one line per span.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/logger"
)

type contextKey struct{}

type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	parent   *Span
	children []*Span
	attrs    []any
}

// Start opens a span named name. With a span already in ctx the new span is
// its child; otherwise it is a root whose trace id is the request id.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.parent = parent
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = logger.RequestID(ctx)
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// SetAttr attaches a key-value pair logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End stops the span clock. Ending a root span logs the whole tree.
func (s *Span) End(ctx context.Context) {
	s.Duration = time.Since(s.Start)
	if s.parent == nil {
		s.log(logger.FromContext(ctx), 0)
	}
}

// Children returns the direct child spans in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func (s *Span) log(l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}, s.attrs...)
	children := s.children
	s.mu.Unlock()

	l.Debug("span", attrs...)
	for _, child := range children {
		child.log(l, depth+1)
	}
}
