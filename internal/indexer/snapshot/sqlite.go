package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/glebarez/sqlite"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
)

// SQLiteFile is the database file created inside the data directory.
const SQLiteFile = "index.db"

var sqliteTables = map[string]string{
	ArtifactIndex: `CREATE TABLE snapshot_index (
		term TEXT NOT NULL,
		doc_id INTEGER NOT NULL,
		PRIMARY KEY (term, doc_id)
	)`,
	ArtifactDocMap: `CREATE TABLE snapshot_docmap (
		doc_id INTEGER PRIMARY KEY,
		document TEXT NOT NULL
	)`,
	ArtifactTermFrequencies: `CREATE TABLE snapshot_term_frequencies (
		doc_id INTEGER NOT NULL,
		term TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (doc_id, term)
	)`,
	ArtifactDocLengths: `CREATE TABLE snapshot_doc_lengths (
		doc_id INTEGER PRIMARY KEY,
		length INTEGER NOT NULL
	)`,
}

func tableName(artifact string) string {
	return "snapshot_" + artifact
}

// SQLiteStore keeps the four artifacts as tables of one SQLite database.
// The database is opened lazily and kept open until Close.
type SQLiteStore struct {
	dataDir string
	logger  *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(dataDir string) *SQLiteStore {
	return &SQLiteStore{
		dataDir: dataDir,
		logger:  slog.Default().With("component", "snapshot-sqlite", "data_dir", dataDir),
	}
}

func (s *SQLiteStore) path() string {
	return filepath.Join(s.dataDir, SQLiteFile)
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", s.path())
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

// Save replaces all four tables inside one transaction, so readers see either
// the previous snapshot or the new one.
func (s *SQLiteStore) Save(ctx context.Context, st *index.State) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	if err := writeTables(ctx, tx, st); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	s.logger.Info("snapshot saved", "terms", len(st.Index), "docs", st.DocCount())
	return nil
}

func writeTables(ctx context.Context, tx *sql.Tx, st *index.State) error {
	for _, name := range Artifacts {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tableName(name)); err != nil {
			return fmt.Errorf("dropping table for %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, sqliteTables[name]); err != nil {
			return fmt.Errorf("creating table for %q: %w", name, err)
		}
	}

	insert := func(artifact, query string, rows func(stmt *sql.Stmt) error) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing insert for %q: %w", artifact, err)
		}
		defer stmt.Close()
		if err := rows(stmt); err != nil {
			return fmt.Errorf("writing %q: %w", artifact, err)
		}
		return nil
	}

	if err := insert(ArtifactIndex, "INSERT INTO snapshot_index (term, doc_id) VALUES (?, ?)", func(stmt *sql.Stmt) error {
		for term, postings := range st.Index {
			for _, id := range postings {
				if _, err := stmt.ExecContext(ctx, term, id); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := insert(ArtifactDocMap, "INSERT INTO snapshot_docmap (doc_id, document) VALUES (?, ?)", func(stmt *sql.Stmt) error {
		for id, doc := range st.Documents {
			data, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, id, string(data)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := insert(ArtifactTermFrequencies, "INSERT INTO snapshot_term_frequencies (doc_id, term, count) VALUES (?, ?, ?)", func(stmt *sql.Stmt) error {
		for id, counts := range st.TermFrequencies {
			for term, n := range counts {
				if _, err := stmt.ExecContext(ctx, id, term, n); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	return insert(ArtifactDocLengths, "INSERT INTO snapshot_doc_lengths (doc_id, length) VALUES (?, ?)", func(stmt *sql.Stmt) error {
		for id, n := range st.DocLengths {
			if _, err := stmt.ExecContext(ctx, id, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads a snapshot written by Save. The database file and every table
// must exist before any rows are read.
func (s *SQLiteStore) Load(ctx context.Context) (*index.State, error) {
	if _, err := os.Stat(s.path()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingArtifactError{Name: ArtifactIndex}
		}
		return nil, fmt.Errorf("checking snapshot database: %w", err)
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	for _, name := range Artifacts {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", tableName(name),
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("checking table for %q: %w", name, err)
		}
		if n == 0 {
			return nil, &MissingArtifactError{Name: name}
		}
	}

	st := index.NewState()
	if err := readIndex(ctx, db, st); err != nil {
		return nil, err
	}
	if err := readDocMap(ctx, db, st); err != nil {
		return nil, err
	}
	if err := readTermFrequencies(ctx, db, st); err != nil {
		return nil, err
	}
	if err := readDocLengths(ctx, db, st); err != nil {
		return nil, err
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("snapshot loaded", "terms", len(st.Index), "docs", st.DocCount())
	return st, nil
}

func readIndex(ctx context.Context, db *sql.DB, st *index.State) error {
	rows, err := db.QueryContext(ctx, "SELECT term, doc_id FROM snapshot_index ORDER BY term, doc_id")
	if err != nil {
		return fmt.Errorf("reading %q: %w", ArtifactIndex, err)
	}
	defer rows.Close()
	for rows.Next() {
		var term string
		var id int
		if err := rows.Scan(&term, &id); err != nil {
			return corrupt(ArtifactIndex, "%v", err)
		}
		st.Index[term] = append(st.Index[term], id)
	}
	return rows.Err()
}

func readDocMap(ctx context.Context, db *sql.DB, st *index.State) error {
	rows, err := db.QueryContext(ctx, "SELECT doc_id, document FROM snapshot_docmap")
	if err != nil {
		return fmt.Errorf("reading %q: %w", ArtifactDocMap, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return corrupt(ArtifactDocMap, "%v", err)
		}
		var doc corpus.Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return corrupt(ArtifactDocMap, "document %d: %v", id, err)
		}
		st.Documents[id] = doc
	}
	return rows.Err()
}

func readTermFrequencies(ctx context.Context, db *sql.DB, st *index.State) error {
	rows, err := db.QueryContext(ctx, "SELECT doc_id, term, count FROM snapshot_term_frequencies")
	if err != nil {
		return fmt.Errorf("reading %q: %w", ArtifactTermFrequencies, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, n int
		var term string
		if err := rows.Scan(&id, &term, &n); err != nil {
			return corrupt(ArtifactTermFrequencies, "%v", err)
		}
		counts, ok := st.TermFrequencies[id]
		if !ok {
			counts = make(map[string]int)
			st.TermFrequencies[id] = counts
		}
		counts[term] = n
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// Documents without terms have no rows but still own an empty table.
	for id := range st.Documents {
		if _, ok := st.TermFrequencies[id]; !ok {
			st.TermFrequencies[id] = make(map[string]int)
		}
	}
	return nil
}

func readDocLengths(ctx context.Context, db *sql.DB, st *index.State) error {
	rows, err := db.QueryContext(ctx, "SELECT doc_id, length FROM snapshot_doc_lengths")
	if err != nil {
		return fmt.Errorf("reading %q: %w", ArtifactDocLengths, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return corrupt(ArtifactDocLengths, "%v", err)
		}
		st.DocLengths[id] = n
	}
	return rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
