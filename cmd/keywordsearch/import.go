package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/postgres"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the movies file into the PostgreSQL corpus table",
	Long: `Import reads the configured movies JSON file and upserts every movie into
the PostgreSQL table named by corpus.table, creating the table when missing.
Afterwards set corpus.source to postgres to build from the database.`,
	Args: cobra.NoArgs,
	RunE: importCmdRun,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()
	cfg := rootArgs.cfg

	docs, err := corpus.LoadMovies(cfg.Corpus.MoviesPath)
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	loader, err := corpus.NewPostgresLoader(db, cfg.Corpus.Table)
	if err != nil {
		return err
	}
	n, err := loader.Import(ctx, docs)
	if err != nil {
		return err
	}
	cmd.Println("✔", fmt.Sprintf("imported %d movies into %s", n, cfg.Corpus.Table))
	return nil
}
