package parser

import (
	"strings"
)

// Normalizer turns query text into index terms.
type Normalizer interface {
	Normalize(text string) []string
}

// QueryPlan is a parsed query: the raw text and its ordered terms. Repeated
// terms are kept so they weigh once per occurrence when scored.
type QueryPlan struct {
	Terms    []string
	RawQuery string
}

// Empty reports whether the query produced no terms.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

func Parse(normalizer Normalizer, query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = append(plan.Terms, normalizer.Normalize(query)...)
	return plan
}
