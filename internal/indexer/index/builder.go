// Package index builds the in-memory inverted index snapshot: postings per
// term, per-document term frequencies, document lengths and the document map.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
)

// Normalizer produces the ordered terms of a piece of text.
type Normalizer interface {
	Normalize(text string) []string
}

// Builder accumulates documents into a State. It is single-use and not safe
// for concurrent use; call Finish once every document is added.
type Builder struct {
	normalizer Normalizer
	state      *State
	tokens     int
}

func NewBuilder(normalizer Normalizer) *Builder {
	return &Builder{
		normalizer: normalizer,
		state:      NewState(),
	}
}

// AddDocument indexes doc. A document id seen before is rejected with
// ErrDuplicateDocument and leaves the builder unchanged.
func (b *Builder) AddDocument(doc corpus.Document) error {
	if _, exists := b.state.Documents[doc.ID]; exists {
		return fmt.Errorf("indexing document %d: %w", doc.ID, apperrors.ErrDuplicateDocument)
	}
	terms := b.normalizer.Normalize(doc.Text())

	counts := make(map[string]int)
	for _, term := range terms {
		counts[term]++
	}
	for term := range counts {
		b.state.Index[term] = append(b.state.Index[term], doc.ID)
	}
	b.state.TermFrequencies[doc.ID] = counts
	b.state.DocLengths[doc.ID] = len(terms)
	b.state.Documents[doc.ID] = doc
	b.tokens += len(terms)
	return nil
}

// Tokens is the number of terms indexed so far, repetitions included.
func (b *Builder) Tokens() int {
	return b.tokens
}

// Finish sorts every posting list and returns the built State. The builder
// must not be used afterwards.
func (b *Builder) Finish() *State {
	for _, postings := range b.state.Index {
		sort.Ints(postings)
	}
	st := b.state
	b.state = nil
	return st
}

// Build indexes docs in one pass.
func Build(docs []corpus.Document, normalizer Normalizer) (*State, error) {
	b := NewBuilder(normalizer)
	for _, doc := range docs {
		if err := b.AddDocument(doc); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}
