package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
)

// PostingList holds the ids of documents containing a term, ascending.
type PostingList []int

// State is one complete index snapshot. The four tables are built, saved and
// loaded together and are never mutated once published.
type State struct {
	Index           map[string]PostingList
	Documents       map[int]corpus.Document
	TermFrequencies map[int]map[string]int
	DocLengths      map[int]int
}

// NewState returns an empty State with every table allocated.
func NewState() *State {
	return &State{
		Index:           make(map[string]PostingList),
		Documents:       make(map[int]corpus.Document),
		TermFrequencies: make(map[int]map[string]int),
		DocLengths:      make(map[int]int),
	}
}

func (s *State) DocCount() int {
	return len(s.Documents)
}

// AvgDocLength is the mean of DocLengths, or 0 for an empty index.
func (s *State) AvgDocLength() float64 {
	if len(s.DocLengths) == 0 {
		return 0
	}
	var total int
	for _, n := range s.DocLengths {
		total += n
	}
	return float64(total) / float64(len(s.DocLengths))
}

func (s *State) Postings(term string) PostingList {
	return s.Index[term]
}

func (s *State) DocLength(docID int) int {
	return s.DocLengths[docID]
}

func (s *State) TermFrequency(docID int, term string) int {
	return s.TermFrequencies[docID][term]
}

func (s *State) Document(docID int) (corpus.Document, bool) {
	doc, ok := s.Documents[docID]
	return doc, ok
}

// DocIDs returns every indexed document id, ascending.
func (s *State) DocIDs() []int {
	ids := make([]int, 0, len(s.Documents))
	for id := range s.Documents {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Terms returns every indexed term in lexical order.
func (s *State) Terms() []string {
	terms := make([]string, 0, len(s.Index))
	for term := range s.Index {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Validate checks the cross-table invariants: the three per-document tables
// share one key set, every document's counts sum to its length, and a
// document is in a term's postings exactly when it counts that term.
func (s *State) Validate() error {
	if s.Index == nil || s.Documents == nil || s.TermFrequencies == nil || s.DocLengths == nil {
		return fmt.Errorf("%w: snapshot has an unallocated table", apperrors.ErrCorruptSnapshot)
	}
	if len(s.TermFrequencies) != len(s.Documents) || len(s.DocLengths) != len(s.Documents) {
		return fmt.Errorf("%w: table sizes differ (docs=%d tf=%d lengths=%d)",
			apperrors.ErrCorruptSnapshot, len(s.Documents), len(s.TermFrequencies), len(s.DocLengths))
	}
	postingCount := 0
	for id := range s.Documents {
		counts, ok := s.TermFrequencies[id]
		if !ok {
			return fmt.Errorf("%w: document %d has no term frequencies", apperrors.ErrCorruptSnapshot, id)
		}
		length, ok := s.DocLengths[id]
		if !ok {
			return fmt.Errorf("%w: document %d has no length", apperrors.ErrCorruptSnapshot, id)
		}
		sum := 0
		for term, n := range counts {
			if n <= 0 {
				return fmt.Errorf("%w: document %d counts term %q %d times", apperrors.ErrCorruptSnapshot, id, term, n)
			}
			sum += n
		}
		if sum != length {
			return fmt.Errorf("%w: document %d term counts sum to %d, length is %d", apperrors.ErrCorruptSnapshot, id, sum, length)
		}
		postingCount += len(counts)
	}
	indexed := 0
	for term, postings := range s.Index {
		for i, id := range postings {
			if i > 0 && postings[i-1] >= id {
				return fmt.Errorf("%w: postings for %q are not strictly ascending", apperrors.ErrCorruptSnapshot, term)
			}
			if s.TermFrequencies[id][term] == 0 {
				return fmt.Errorf("%w: postings for %q list document %d which does not contain it", apperrors.ErrCorruptSnapshot, term, id)
			}
		}
		indexed += len(postings)
	}
	if indexed != postingCount {
		return fmt.Errorf("%w: postings hold %d entries, term frequencies imply %d", apperrors.ErrCorruptSnapshot, indexed, postingCount)
	}
	return nil
}
