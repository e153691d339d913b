// Package snapshot persists and restores complete index States. A snapshot is
// four named artifacts (index, docmap, term_frequencies, doc_lengths) that
// are always written and read as a unit.
package snapshot

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
)

const (
	ArtifactIndex           = "index"
	ArtifactDocMap          = "docmap"
	ArtifactTermFrequencies = "term_frequencies"
	ArtifactDocLengths      = "doc_lengths"
)

// Artifacts lists every artifact in the order they are checked and written.
var Artifacts = []string{ArtifactIndex, ArtifactDocMap, ArtifactTermFrequencies, ArtifactDocLengths}

// Store saves and loads whole snapshots.
type Store interface {
	Save(ctx context.Context, st *index.State) error
	Load(ctx context.Context) (*index.State, error)
	Close() error
}

// MissingArtifactError reports which artifact was absent when a load was
// attempted. It matches apperrors.ErrMissingIndexArtifact.
type MissingArtifactError struct {
	Name string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing index artifact %q: build the index first", e.Name)
}

func (e *MissingArtifactError) Unwrap() error {
	return apperrors.ErrMissingIndexArtifact
}

// Open returns the Store selected by cfg.Backend.
func Open(cfg config.IndexerConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendFile:
		codec, err := CodecByName(cfg.Codec)
		if err != nil {
			return nil, err
		}
		return NewFileStore(cfg.DataDir, codec, cfg.Compress), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func corrupt(artifact string, format string, args ...any) error {
	return fmt.Errorf("%w: artifact %q: %s", apperrors.ErrCorruptSnapshot, artifact, fmt.Sprintf(format, args...))
}
