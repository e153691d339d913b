package corpus

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, err := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	if err != nil {
		t.Fatalf("TEST_POSTGRES_PORT: %v", err)
	}
	db, err := postgres.New(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "movies_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "movies"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNewPostgresLoaderRejectsUnsafeTable(t *testing.T) {
	for _, table := range []string{"movies; DROP TABLE x", "", "1movies", "a.b.c"} {
		if _, err := NewPostgresLoader(nil, table); err == nil {
			t.Errorf("table %q accepted", table)
		}
	}
	for _, table := range []string{"movies", "public.movies", "_films2"} {
		if _, err := NewPostgresLoader(nil, table); err != nil {
			t.Errorf("table %q rejected: %v", table, err)
		}
	}
}

func TestPostgresImportAndLoad(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	table := fmt.Sprintf("movies_test_%d", time.Now().UnixNano())
	t.Cleanup(func() { db.DB.Exec("DROP TABLE IF EXISTS " + table) })

	loader, err := NewPostgresLoader(db, table)
	if err != nil {
		t.Fatal(err)
	}
	n, err := loader.Import(ctx, []Document{
		{ID: 2, Title: "Cars", Description: "Racing cars in a fast world"},
		{ID: 1, Title: "Brave", Description: "A princess with bow and arrow"},
	})
	if err != nil || n != 2 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	if _, err := loader.Import(ctx, []Document{{ID: 2, Title: "Cars (2006)"}}); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != 1 || docs[1].Title != "Cars (2006)" || docs[1].Description != "" {
		t.Fatalf("docs = %+v", docs)
	}
}
