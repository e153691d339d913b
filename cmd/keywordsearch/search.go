package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
)

type searchFlags struct {
	limit int
}

var searchArgs searchFlags

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "List movies containing any query term, in posting order",
	Example: `  keywordsearch search "toy story"
  keywordsearch search brave --limit 10 -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: searchCmdRun,
}

type bm25SearchFlags struct {
	searchFlags
	bm25Flags
}

var bm25SearchArgs bm25SearchFlags

var bm25SearchCmd = &cobra.Command{
	Use:   "bm25search <query>",
	Short: "Rank movies against a query with BM25",
	Example: `  keywordsearch bm25search "space adventure"
  keywordsearch bm25search "space adventure" --limit 3 --k1 1.2 --b 0.6`,
	Args: cobra.MinimumNArgs(1),
	RunE: bm25SearchCmdRun,
}

func init() {
	searchCmd.Flags().IntVar(&searchArgs.limit, "limit", executor.DefaultLimit,
		"maximum number of results")
	bm25SearchCmd.Flags().IntVar(&bm25SearchArgs.limit, "limit", executor.DefaultLimit,
		"maximum number of results")
	bm25SearchArgs.bind(bm25SearchCmd)
	rootCmd.AddCommand(searchCmd, bm25SearchCmd)
}

func searchCmdRun(cmd *cobra.Command, args []string) error {
	return runSearch(cmd, strings.Join(args, " "), false, func(ctx context.Context, exec *executor.Executor, query string) (*executor.SearchResult, error) {
		return exec.Search(ctx, exec.Plan(query), searchArgs.limit)
	})
}

func bm25SearchCmdRun(cmd *cobra.Command, args []string) error {
	params := bm25SearchArgs.params(cmd)
	return runSearch(cmd, strings.Join(args, " "), true, func(ctx context.Context, exec *executor.Executor, query string) (*executor.SearchResult, error) {
		return exec.RankBM25(ctx, exec.Plan(query), bm25SearchArgs.limit, params)
	})
}

func runSearch(
	cmd *cobra.Command,
	query string,
	scored bool,
	fn func(ctx context.Context, exec *executor.Executor, query string) (*executor.SearchResult, error),
) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	exec, closeFn, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := fn(ctx, exec, query)
	if err != nil {
		return err
	}

	header := []string{"#", "ID", "Title"}
	if scored {
		header = append(header, "Score")
	}
	rows := make([][]string, 0, len(result.Results))
	for i, r := range result.Results {
		row := []string{strconv.Itoa(i + 1), strconv.Itoa(r.Document.ID), r.Document.Title}
		if scored {
			row = append(row, formatScore(r.Score))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 && rootArgs.output == outputTable {
		cmd.Println("no matching movies")
		return nil
	}
	return render(cmd, result, header, rows)
}
