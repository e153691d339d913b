package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/postgres"
)

// NewNormalizer builds a Snowball-stemming Normalizer over the configured
// stopword file. An empty path means no stopwords.
func NewNormalizer(cfg config.CorpusConfig) (*tokenizer.Normalizer, error) {
	if cfg.StopwordsPath == "" {
		return tokenizer.New(nil, nil), nil
	}
	stop, err := corpus.LoadStopwords(cfg.StopwordsPath)
	if err != nil {
		return nil, err
	}
	return tokenizer.New(stop, nil), nil
}

// NewLoader returns the configured corpus loader and a func releasing any
// connection it holds.
func NewLoader(ctx context.Context, cfg *config.Config) (corpus.Loader, func() error, error) {
	switch cfg.Corpus.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		loader, err := corpus.NewPostgresLoader(db, cfg.Corpus.Table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return loader, db.Close, nil
	case config.SourceFile, "":
		return corpus.FileLoader{Path: cfg.Corpus.MoviesPath}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown corpus source %q", cfg.Corpus.Source)
	}
}

// OpenEngine wires an Engine from configuration. Queries against it must use
// the same normalizer. withCorpus attaches the corpus loader so Rebuild works;
// without it the engine only loads saved snapshots.
func OpenEngine(ctx context.Context, cfg *config.Config, normalizer index.Normalizer, m *metrics.Metrics, withCorpus bool) (*Engine, error) {
	store, err := snapshot.Open(cfg.Indexer)
	if err != nil {
		return nil, err
	}
	var loader corpus.Loader
	var closeLoader func() error
	if withCorpus {
		loader, closeLoader, err = NewLoader(ctx, cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	e := NewEngine(loader, normalizer, store, m)
	e.closeLoader = closeLoader
	return e, nil
}

func (e *Engine) Close() error {
	var errs []error
	if e.closeLoader != nil {
		errs = append(errs, e.closeLoader())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}
