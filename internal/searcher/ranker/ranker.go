// Package ranker holds the TF-IDF and BM25 scoring formulas and a Scorer that
// evaluates them against an index State.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Params are the BM25 tuning constants.
type Params struct {
	K1 float64 `json:"k1"`
	B  float64 `json:"b"`
}

// DefaultParams returns k1 = 1.5, b = 0.75.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// ComputeIDF is the smoothed inverse document frequency ln((N+1)/(df+1)).
func ComputeIDF(totalDocs, docFreq int) float64 {
	return math.Log(float64(totalDocs+1) / float64(docFreq+1))
}

// ComputeBM25IDF is ln((N - df + 0.5)/(df + 0.5) + 1). The +1 inside the
// logarithm keeps the value positive for every df <= N.
func ComputeBM25IDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// ComputeBM25TF is the saturated, length-normalised term frequency. It is 0
// when tf is 0 or when the average document length is 0.
func ComputeBM25TF(termFreq, docLength int, avgDocLength float64, p Params) float64 {
	if termFreq == 0 || avgDocLength == 0 {
		return 0
	}
	tf := float64(termFreq)
	lengthRatio := float64(docLength) / avgDocLength
	denominator := tf + p.K1*(1-p.B+p.B*lengthRatio)
	return (tf * (p.K1 + 1)) / denominator
}

// Scorer evaluates the formulas for terms that are already normalized.
type Scorer struct {
	state *index.State
	avg   float64
}

func NewScorer(st *index.State) *Scorer {
	return &Scorer{state: st, avg: st.AvgDocLength()}
}

func (s *Scorer) TermFrequency(docID int, term string) int {
	return s.state.TermFrequency(docID, term)
}

func (s *Scorer) DocumentFrequency(term string) int {
	return len(s.state.Postings(term))
}

func (s *Scorer) IDF(term string) float64 {
	return ComputeIDF(s.state.DocCount(), s.DocumentFrequency(term))
}

func (s *Scorer) TFIDF(docID int, term string) float64 {
	return float64(s.TermFrequency(docID, term)) * s.IDF(term)
}

func (s *Scorer) BM25IDF(term string) float64 {
	return ComputeBM25IDF(s.state.DocCount(), s.DocumentFrequency(term))
}

func (s *Scorer) BM25TermScore(docID int, term string, p Params) float64 {
	return ComputeBM25TF(s.TermFrequency(docID, term), s.state.DocLength(docID), s.avg, p)
}

// BM25DocumentScore sums BM25 tf times BM25 idf over terms. Repeated terms
// contribute once per occurrence.
func (s *Scorer) BM25DocumentScore(docID int, terms []string, p Params) float64 {
	var score float64
	for _, term := range terms {
		tf := s.BM25TermScore(docID, term, p)
		if tf == 0 {
			continue
		}
		score += tf * s.BM25IDF(term)
	}
	return score
}

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank orders scored documents by descending score, ties broken by ascending
// id, and truncates to limit when limit > 0.
func Rank(scores map[int]float64, limit int) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
