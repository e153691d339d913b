package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the inverted index from the corpus and save the snapshot",
	Example: `  # Build from the configured movies file
  keywordsearch build

  # Build into a SQLite snapshot
  KS_INDEXER_BACKEND=sqlite keywordsearch build`,
	Args: cobra.NoArgs,
	RunE: buildCmdRun,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func buildCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	normalizer, err := indexer.NewNormalizer(rootArgs.cfg.Corpus)
	if err != nil {
		return err
	}
	engine, err := indexer.OpenEngine(ctx, rootArgs.cfg, normalizer, nil, true)
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.Rebuild(ctx)
	if err != nil {
		return err
	}
	return render(cmd, report,
		[]string{"Documents", "Terms", "Tokens", "Duration"},
		[][]string{{
			strconv.Itoa(report.Documents),
			strconv.Itoa(report.Terms),
			strconv.Itoa(report.Tokens),
			report.Duration.String(),
		}},
	)
}
