// Package tokenizer turns raw text into index terms. Text is lower-cased,
// stripped of ASCII punctuation, split on single spaces, filtered against an
// injected stop-word set and stemmed with an injected stemmer.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball/english"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
)

// punctuation mirrors the ASCII punctuation class. Every character in it is
// deleted, not replaced, so "don't" becomes "dont".
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var stripPunctuation = strings.NewReplacer(punctuationPairs()...)

func punctuationPairs() []string {
	pairs := make([]string, 0, 2*len(punctuation))
	for _, r := range punctuation {
		pairs = append(pairs, string(r), "")
	}
	return pairs
}

// Stopwords is a set of lower-case words dropped before stemming.
type Stopwords map[string]struct{}

// NewStopwords builds a Stopwords set, lower-casing and trimming each word.
func NewStopwords(words ...string) Stopwords {
	set := make(Stopwords, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Stemmer reduces a lower-case word to its stem.
type Stemmer interface {
	Stem(word string) string
}

// StemmerFunc adapts a plain function to the Stemmer interface.
type StemmerFunc func(word string) string

func (f StemmerFunc) Stem(word string) string { return f(word) }

// SnowballStemmer stems with the Snowball English (Porter2) algorithm. Stop
// words are stemmed too since filtering happens before stemming.
var SnowballStemmer Stemmer = StemmerFunc(func(word string) string {
	return english.Stem(word, true)
})

// Normalizer carries the stop-word set and stemmer used to produce terms.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	stopwords Stopwords
	stemmer   Stemmer
}

// New returns a Normalizer. A nil stemmer falls back to SnowballStemmer and a
// nil stop-word set filters nothing.
func New(stopwords Stopwords, stemmer Stemmer) *Normalizer {
	if stemmer == nil {
		stemmer = SnowballStemmer
	}
	if stopwords == nil {
		stopwords = Stopwords{}
	}
	return &Normalizer{stopwords: stopwords, stemmer: stemmer}
}

// Normalize returns the ordered terms of text, repetitions included.
func (n *Normalizer) Normalize(text string) []string {
	text = stripPunctuation.Replace(strings.ToLower(text))
	words := strings.Split(text, " ")
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		if n.stopwords.Contains(word) {
			continue
		}
		terms = append(terms, n.stemmer.Stem(word))
	}
	return terms
}

// Term normalizes text that must yield exactly one term.
func (n *Normalizer) Term(text string) (string, error) {
	terms := n.Normalize(text)
	switch len(terms) {
	case 0:
		return "", fmt.Errorf("normalizing %q: %w", text, apperrors.ErrEmptyQueryText)
	case 1:
		return terms[0], nil
	default:
		return "", fmt.Errorf("normalizing %q yields %d terms: %w", text, len(terms), apperrors.ErrTermTooLong)
	}
}
