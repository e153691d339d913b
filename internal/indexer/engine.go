package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
)

// BuildReport summarises one Rebuild.
type BuildReport struct {
	Documents int           `json:"documents"`
	Terms     int           `json:"terms"`
	Tokens    int           `json:"tokens"`
	Duration  time.Duration `json:"duration"`
}

// Engine owns the served index snapshot. Rebuild and Load replace it
// wholesale; readers obtain it through Current and never see a partially
// built State.
type Engine struct {
	loader     corpus.Loader
	normalizer index.Normalizer
	store      snapshot.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger

	closeLoader func() error

	// mu serializes Rebuild and Load; Current never blocks on it.
	mu      sync.Mutex
	current atomic.Pointer[index.State]
}

// NewEngine wires the engine. loader may be nil for an engine that only loads
// saved snapshots, and m may be nil to skip metrics.
func NewEngine(loader corpus.Loader, normalizer index.Normalizer, store snapshot.Store, m *metrics.Metrics) *Engine {
	return &Engine{
		loader:     loader,
		normalizer: normalizer,
		store:      store,
		metrics:    m,
		logger:     slog.Default().With("component", "indexer"),
	}
}

// Current returns the published State, or nil before the first successful
// Rebuild or Load.
func (e *Engine) Current() *index.State {
	return e.current.Load()
}

// Rebuild loads the corpus, builds a new State, saves it and then publishes
// it. On any failure the previously published State stays in place.
func (e *Engine) Rebuild(ctx context.Context) (*BuildReport, error) {
	if e.loader == nil {
		return nil, fmt.Errorf("rebuild: %w: no corpus loader configured", apperrors.ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	docs, err := e.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	if err := corpus.ValidateIDs(docs); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}

	b := index.NewBuilder(e.normalizer)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.AddDocument(doc); err != nil {
			return nil, err
		}
	}
	tokens := b.Tokens()
	st := b.Finish()

	if err := e.store.Save(ctx, st); err != nil {
		e.observeSnapshot("save", err)
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	e.observeSnapshot("save", nil)
	e.publish(st)

	report := &BuildReport{
		Documents: st.DocCount(),
		Terms:     len(st.Index),
		Tokens:    tokens,
		Duration:  time.Since(start),
	}
	if e.metrics != nil {
		e.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
		e.metrics.DocsIndexedTotal.Add(float64(report.Documents))
	}
	e.logger.Info("index rebuilt",
		"documents", report.Documents,
		"terms", report.Terms,
		"tokens", report.Tokens,
		"duration", report.Duration,
	)
	return report, nil
}

// Load reads the saved snapshot and publishes it.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.store.Load(ctx)
	e.observeSnapshot("load", err)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	e.publish(st)
	e.logger.Info("snapshot published", "documents", st.DocCount(), "terms", len(st.Index))
	return nil
}

// StartReloadLoop calls Load every interval until ctx is done. Failed
// reloads are logged and keep the current snapshot. onReload, when non-nil,
// runs after every successful reload.
func (e *Engine) StartReloadLoop(ctx context.Context, interval time.Duration, onReload func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("reload loop stopping")
				return
			case <-ticker.C:
				if err := e.Load(ctx); err != nil {
					e.logger.Error("periodic reload failed", "error", err)
					continue
				}
				if onReload != nil {
					onReload()
				}
			}
		}
	}()
}

func (e *Engine) publish(st *index.State) {
	e.current.Store(st)
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(st.DocCount()))
		e.metrics.IndexTerms.Set(float64(len(st.Index)))
	}
}

func (e *Engine) observeSnapshot(operation string, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.SnapshotOperationsTotal.WithLabelValues(operation, status).Inc()
}
