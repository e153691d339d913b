// Package postgres opens the lib/pq pool that backs the movie corpus table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/resilience"
)

// pingTimeout bounds each connection attempt.
const pingTimeout = 5 * time.Second

type Client struct {
	DB *sql.DB
}

// New opens a pool and waits until the server answers a ping, retrying with
// backoff so a database that is still starting does not fail a build.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return resilience.WithTimeout(ctx, pingTimeout, "postgres ping", db.PingContext)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// InTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
