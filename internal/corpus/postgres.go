package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/resilience"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresLoader reads movies from a table with at least the columns
// id, title and description:
//
//	CREATE TABLE movies (
//	    id          INTEGER PRIMARY KEY,
//	    title       TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT ''
//	);
type PostgresLoader struct {
	db     *postgres.Client
	table  string
	query  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewPostgresLoader returns a loader for the given table. The table name is
// interpolated into SQL and must be a plain (optionally schema-qualified)
// identifier.
func NewPostgresLoader(db *postgres.Client, table string) (*PostgresLoader, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid corpus table name %q", table)
	}
	return &PostgresLoader{
		db:     db,
		table:  table,
		query:  fmt.Sprintf(`SELECT id, title, COALESCE(description, '') FROM %s ORDER BY id`, table),
		logger: slog.Default().With("component", "corpus-postgres", "table", table),
	}, nil
}

func (l *PostgresLoader) Load(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := resilience.Retry(ctx, "load corpus", l.retry, func() error {
		var err error
		docs, err = l.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("corpus loaded", "documents", len(docs))
	return docs, nil
}

func (l *PostgresLoader) fetch(ctx context.Context) ([]Document, error) {
	rows, err := l.db.DB.QueryContext(ctx, l.query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()
	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		var description sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Title, &description); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		doc.Description = description.String
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return docs, nil
}

// Import creates the table when it is missing and upserts docs in one
// transaction. Fields outside id, title and description are not stored.
func (l *PostgresLoader) Import(ctx context.Context, docs []Document) (int, error) {
	if err := Validate(docs); err != nil {
		return 0, err
	}
	err := l.db.InTx(ctx, func(tx *sql.Tx) error {
		create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          INTEGER PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`, l.table)
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("creating corpus table: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, title, description) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description`, l.table))
		if err != nil {
			return fmt.Errorf("preparing corpus insert: %w", err)
		}
		defer stmt.Close()
		for _, doc := range docs {
			if _, err := stmt.ExecContext(ctx, doc.ID, doc.Title, doc.Description); err != nil {
				return fmt.Errorf("inserting document %d: %w", doc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info("corpus imported", "documents", len(docs))
	return len(docs), nil
}
