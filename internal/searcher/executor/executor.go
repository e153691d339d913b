package executor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/logger"
)

// DefaultLimit is used when a search asks for zero or fewer results.
const DefaultLimit = 5

const (
	ModePostings = "postings"
	ModeBM25     = "bm25"
)

// SnapshotSource hands out the index State currently being served. It
// returns nil when no snapshot has been published.
type SnapshotSource interface {
	Current() *index.State
}

// Normalizer maps query text to terms and single-term lookups to one term.
type Normalizer interface {
	Normalize(text string) []string
	Term(text string) (string, error)
}

type Result struct {
	Document corpus.Document `json:"document"`
	Score    float64         `json:"score"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Mode      string   `json:"mode"`
	Terms     []string `json:"terms"`
	TotalHits int      `json:"total_hits"`
	Results   []Result `json:"results"`
}

type Executor struct {
	source     SnapshotSource
	normalizer Normalizer
}

func New(source SnapshotSource, normalizer Normalizer) *Executor {
	return &Executor{
		source:     source,
		normalizer: normalizer,
	}
}

// Plan parses raw query text with the executor's normalizer.
func (e *Executor) Plan(query string) *parser.QueryPlan {
	return parser.Parse(e.normalizer, query)
}

func (e *Executor) state() (*index.State, error) {
	st := e.source.Current()
	if st == nil {
		return nil, apperrors.New(apperrors.ErrMissingIndexArtifact, http.StatusServiceUnavailable, "no index snapshot loaded")
	}
	return st, nil
}

// Search walks the plan's terms in order and each posting list in ascending
// id order, returning every document the first time it is seen until limit
// documents are collected. Results carry no score.
func (e *Executor) Search(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	st, err := e.state()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	result := &SearchResult{
		Query:   plan.RawQuery,
		Mode:    ModePostings,
		Terms:   plan.Terms,
		Results: []Result{},
	}
	seen := make(map[int]struct{})
	for _, term := range plan.Terms {
		for _, id := range st.Postings(term) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if len(result.Results) < limit {
				doc, _ := st.Document(id)
				result.Results = append(result.Results, Result{Document: doc})
			}
		}
	}
	result.TotalHits = len(seen)
	logger.FromContext(ctx).Debug("query executed",
		"mode", ModePostings,
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"candidates", len(seen),
		"results", len(result.Results),
	)
	return result, nil
}

// RankBM25 scores every document with BM25 and returns the top limit by
// descending score, ties broken by ascending id. Documents matching no query
// term score 0 and fill the remaining slots. TotalHits counts the documents
// with a positive score.
func (e *Executor) RankBM25(ctx context.Context, plan *parser.QueryPlan, limit int, params ranker.Params) (*SearchResult, error) {
	st, err := e.state()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	result := &SearchResult{
		Query:   plan.RawQuery,
		Mode:    ModeBM25,
		Terms:   plan.Terms,
		Results: []Result{},
	}
	if st.DocCount() == 0 || plan.Empty() {
		return result, nil
	}

	scorer := ranker.NewScorer(st)
	scores := make(map[int]float64, st.DocCount())
	for _, id := range st.DocIDs() {
		score := scorer.BM25DocumentScore(id, plan.Terms, params)
		if score > 0 {
			result.TotalHits++
		}
		scores[id] = score
	}
	for _, scored := range ranker.Rank(scores, limit) {
		doc, _ := st.Document(scored.DocID)
		result.Results = append(result.Results, Result{Document: doc, Score: scored.Score})
	}
	logger.FromContext(ctx).Debug("query executed",
		"mode", ModeBM25,
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"k1", params.K1,
		"b", params.B,
		"hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// Document returns the stored record for id.
func (e *Executor) Document(id int) (corpus.Document, error) {
	st, err := e.state()
	if err != nil {
		return corpus.Document{}, err
	}
	doc, ok := st.Document(id)
	if !ok {
		return corpus.Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d", id)
	}
	return doc, nil
}

// lookup normalizes a single-term input and returns it with a scorer over the
// current snapshot.
func (e *Executor) lookup(text string) (string, *ranker.Scorer, *index.State, error) {
	st, err := e.state()
	if err != nil {
		return "", nil, nil, err
	}
	term, err := e.normalizer.Term(text)
	if err != nil {
		return "", nil, nil, err
	}
	return term, ranker.NewScorer(st), st, nil
}

// TermFrequency is 0 when the document is unknown or lacks the term.
func (e *Executor) TermFrequency(docID int, text string) (int, error) {
	term, scorer, _, err := e.lookup(text)
	if err != nil {
		return 0, err
	}
	return scorer.TermFrequency(docID, term), nil
}

func (e *Executor) DocumentFrequency(text string) (int, error) {
	term, scorer, _, err := e.lookup(text)
	if err != nil {
		return 0, err
	}
	return scorer.DocumentFrequency(term), nil
}

func (e *Executor) IDF(text string) (float64, error) {
	term, scorer, _, err := e.lookup(text)
	if err != nil {
		return 0, err
	}
	return scorer.IDF(term), nil
}

func (e *Executor) BM25IDF(text string) (float64, error) {
	term, scorer, _, err := e.lookup(text)
	if err != nil {
		return 0, err
	}
	return scorer.BM25IDF(term), nil
}

func (e *Executor) TFIDF(docID int, text string) (float64, error) {
	term, scorer, _, err := e.lookup(text)
	if err != nil {
		return 0, err
	}
	return scorer.TFIDF(docID, term), nil
}

// BM25TermScore rejects an empty index, where the average document length
// is zero.
func (e *Executor) BM25TermScore(docID int, text string, params ranker.Params) (float64, error) {
	term, scorer, st, err := e.lookup(text)
	if err != nil {
		return 0, err
	}
	if st.DocCount() == 0 || st.AvgDocLength() == 0 {
		return 0, fmt.Errorf("bm25 term score for %q: %w", term, apperrors.ErrEmptyIndex)
	}
	return scorer.BM25TermScore(docID, term, params), nil
}

// Stats summarises the current snapshot.
type Stats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	AvgDocLength float64 `json:"avg_doc_length"`
}

func (e *Executor) Stats() (Stats, error) {
	st, err := e.state()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:    st.DocCount(),
		Terms:        len(st.Index),
		AvgDocLength: st.AvgDocLength(),
	}, nil
}
