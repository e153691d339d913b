package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/ranker"
)

// openExecutor loads the saved snapshot and returns an executor over it
// together with a func releasing the store.
func openExecutor(ctx context.Context) (*executor.Executor, func(), error) {
	normalizer, err := indexer.NewNormalizer(rootArgs.cfg.Corpus)
	if err != nil {
		return nil, nil, err
	}
	engine, err := indexer.OpenEngine(ctx, rootArgs.cfg, normalizer, nil, false)
	if err != nil {
		return nil, nil, err
	}
	if err := engine.Load(ctx); err != nil {
		engine.Close()
		return nil, nil, err
	}
	return executor.New(engine, normalizer), func() { engine.Close() }, nil
}

// bm25Flags binds --k1 and --b with the configured defaults applied at run
// time.
type bm25Flags struct {
	k1 float64
	b  float64
}

func (f *bm25Flags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.k1, "k1", -1, "BM25 term saturation (default from config)")
	cmd.Flags().Float64Var(&f.b, "b", -1, "BM25 length normalisation (default from config)")
}

func (f *bm25Flags) params(cmd *cobra.Command) ranker.Params {
	p := ranker.Params{K1: rootArgs.cfg.Search.K1, B: rootArgs.cfg.Search.B}
	if cmd.Flags().Changed("k1") {
		p.K1 = f.k1
	}
	if cmd.Flags().Changed("b") {
		p.B = f.b
	}
	return p
}

func parseDocID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("document id must be an integer, got %q", arg)
	}
	return id, nil
}

// render writes v as indented JSON or the given rows as a table, depending on
// --output.
func render(cmd *cobra.Command, v any, header []string, rows [][]string) error {
	out := cmd.OutOrStdout()
	if rootArgs.output == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	printTable(out, header, rows)
	return nil
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
