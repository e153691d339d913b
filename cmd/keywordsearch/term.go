package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

// termResult is the JSON shape shared by the single-term commands.
type termResult struct {
	DocID *int    `json:"doc_id,omitempty"`
	Term  string  `json:"term"`
	Name  string  `json:"statistic"`
	Value float64 `json:"value"`
}

var tfCmd = &cobra.Command{
	Use:   "tf <doc_id> <term>",
	Short: "Print how often a term occurs in a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocTerm(cmd, args, "tf", func(ctx context.Context, docID int, term string) (float64, error) {
			exec, closeFn, err := openExecutor(ctx)
			if err != nil {
				return 0, err
			}
			defer closeFn()
			tf, err := exec.TermFrequency(docID, term)
			return float64(tf), err
		})
	},
}

var idfCmd = &cobra.Command{
	Use:   "idf <term>",
	Short: "Print the inverse document frequency of a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTerm(cmd, args[0], "idf", func(ctx context.Context, term string) (float64, error) {
			exec, closeFn, err := openExecutor(ctx)
			if err != nil {
				return 0, err
			}
			defer closeFn()
			return exec.IDF(term)
		})
	},
}

var bm25idfCmd = &cobra.Command{
	Use:   "bm25idf <term>",
	Short: "Print the BM25 inverse document frequency of a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTerm(cmd, args[0], "bm25idf", func(ctx context.Context, term string) (float64, error) {
			exec, closeFn, err := openExecutor(ctx)
			if err != nil {
				return 0, err
			}
			defer closeFn()
			return exec.BM25IDF(term)
		})
	},
}

var tfidfCmd = &cobra.Command{
	Use:   "tfidf <doc_id> <term>",
	Short: "Print the TF-IDF score of a term in a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocTerm(cmd, args, "tfidf", func(ctx context.Context, docID int, term string) (float64, error) {
			exec, closeFn, err := openExecutor(ctx)
			if err != nil {
				return 0, err
			}
			defer closeFn()
			return exec.TFIDF(docID, term)
		})
	},
}

var bm25tfArgs bm25Flags

var bm25tfCmd = &cobra.Command{
	Use:     "bm25tf <doc_id> <term>",
	Short:   "Print the BM25 term score of a term in a document",
	Example: `  keywordsearch bm25tf 2 cars --k1 1.2 --b 0.5`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := bm25tfArgs.params(cmd)
		return runDocTerm(cmd, args, "bm25tf", func(ctx context.Context, docID int, term string) (float64, error) {
			exec, closeFn, err := openExecutor(ctx)
			if err != nil {
				return 0, err
			}
			defer closeFn()
			return exec.BM25TermScore(docID, term, params)
		})
	},
}

func init() {
	bm25tfArgs.bind(bm25tfCmd)
	rootCmd.AddCommand(tfCmd, idfCmd, bm25idfCmd, tfidfCmd, bm25tfCmd)
}

func runTerm(cmd *cobra.Command, term, name string, fn func(ctx context.Context, term string) (float64, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	value, err := fn(ctx, term)
	if err != nil {
		return err
	}
	return render(cmd, termResult{Term: term, Name: name, Value: value},
		[]string{"Term", name},
		[][]string{{term, formatValue(name, value)}},
	)
}

func runDocTerm(cmd *cobra.Command, args []string, name string, fn func(ctx context.Context, docID int, term string) (float64, error)) error {
	docID, err := parseDocID(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	value, err := fn(ctx, docID, args[1])
	if err != nil {
		return err
	}
	return render(cmd, termResult{DocID: &docID, Term: args[1], Name: name, Value: value},
		[]string{"Doc ID", "Term", name},
		[][]string{{strconv.Itoa(docID), args[1], formatValue(name, value)}},
	)
}

// formatValue prints raw counts without decimals.
func formatValue(name string, v float64) string {
	if name == "tf" {
		return strconv.Itoa(int(v))
	}
	return formatScore(v)
}
