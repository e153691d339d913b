package ranker

import (
	"math"
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/tokenizer"
)

func buildState(t *testing.T) *index.State {
	t.Helper()
	docs := []corpus.Document{
		{ID: 1, Title: "Brave", Description: "A princess with bow and arrow"},
		{ID: 2, Title: "Cars", Description: "Racing cars in a fast world"},
		{ID: 3, Title: "Planes", Description: "A crop duster races around the world"},
	}
	st, err := index.Build(docs, tokenizer.New(tokenizer.NewStopwords("a", "and", "in", "with", "the"), nil))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestComputeIDFMonotonic(t *testing.T) {
	const n = 10
	prev, prevBM25 := math.Inf(1), math.Inf(1)
	for df := 0; df <= n; df++ {
		idf := ComputeIDF(n, df)
		bm25 := ComputeBM25IDF(n, df)
		if idf >= prev {
			t.Errorf("idf(df=%d) = %v not below %v", df, idf, prev)
		}
		if bm25 >= prevBM25 {
			t.Errorf("bm25 idf(df=%d) = %v not below %v", df, bm25, prevBM25)
		}
		if bm25 <= 0 {
			t.Errorf("bm25 idf(df=%d) = %v, want positive", df, bm25)
		}
		prev, prevBM25 = idf, bm25
	}
	if got := ComputeIDF(n, n); got != 0 {
		t.Errorf("idf when every document matches = %v, want 0", got)
	}
}

func TestComputeIDFValues(t *testing.T) {
	if got, want := ComputeIDF(2, 1), math.Log(1.5); math.Abs(got-want) > 1e-12 {
		t.Errorf("ComputeIDF(2,1) = %v, want %v", got, want)
	}
	if got, want := ComputeBM25IDF(2, 1), math.Log(2); math.Abs(got-want) > 1e-12 {
		t.Errorf("ComputeBM25IDF(2,1) = %v, want %v", got, want)
	}
}

func TestComputeBM25TF(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name      string
		tf, len   int
		avg, want float64
	}{
		{"zero tf", 0, 5, 4.5, 0},
		{"empty index", 2, 5, 0, 0},
		{"average length", 1, 4, 4, 1},
		{"b zero ignores length", 2, 100, 1, 2 * 2.5 / (2 + 1.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := p
			if tt.name == "b zero ignores length" {
				params.B = 0
			}
			got := ComputeBM25TF(tt.tf, tt.len, tt.avg, params)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("ComputeBM25TF = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBM25TFSaturates(t *testing.T) {
	p := DefaultParams()
	prev := 0.0
	for tf := 1; tf <= 50; tf++ {
		got := ComputeBM25TF(tf, 10, 10, p)
		if got <= prev {
			t.Fatalf("bm25 tf not increasing at tf=%d", tf)
		}
		if got >= p.K1+1 {
			t.Fatalf("bm25 tf %v reached the k1+1 ceiling", got)
		}
		prev = got
	}
}

func TestScorer(t *testing.T) {
	st := buildState(t)
	s := NewScorer(st)
	p := DefaultParams()

	if got := s.DocumentFrequency("car"); got != 1 {
		t.Errorf("df(car) = %d, want 1", got)
	}
	if got := s.DocumentFrequency("world"); got != 2 {
		t.Errorf("df(world) = %d, want 2", got)
	}
	if got := s.DocumentFrequency("unknown"); got != 0 {
		t.Errorf("df(unknown) = %d, want 0", got)
	}
	if got := s.TermFrequency(2, "car"); got != 2 {
		t.Errorf("tf(2, car) = %d, want 2", got)
	}
	if got, want := s.TFIDF(2, "car"), 2*math.Log(4.0/2.0); math.Abs(got-want) > 1e-12 {
		t.Errorf("tfidf(2, car) = %v, want %v", got, want)
	}
	for _, id := range st.DocIDs() {
		for term := range st.Index {
			score := s.BM25TermScore(id, term, p)
			if (score == 0) != (s.TermFrequency(id, term) == 0) {
				t.Errorf("bm25 tf(%d, %q) = %v with tf %d", id, term, score, s.TermFrequency(id, term))
			}
		}
	}
	if got := s.BM25DocumentScore(1, []string{"car"}, p); got != 0 {
		t.Errorf("doc 1 score for car = %v, want 0", got)
	}
	once := s.BM25DocumentScore(2, []string{"car"}, p)
	twice := s.BM25DocumentScore(2, []string{"car", "car"}, p)
	if once <= 0 || math.Abs(twice-2*once) > 1e-12 {
		t.Errorf("repeated query terms: once=%v twice=%v", once, twice)
	}
}

func TestRank(t *testing.T) {
	scores := map[int]float64{4: 1.5, 2: 3.0, 9: 1.5, 7: 0, 1: 0.2}
	got := Rank(scores, 0)
	want := []int{2, 4, 9, 1, 7}
	if len(got) != len(want) {
		t.Fatalf("Rank returned %d docs, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].DocID != id {
			t.Fatalf("position %d = %d, want %d (%v)", i, got[i].DocID, id, got)
		}
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Score > got[j].Score }) {
		t.Fatal("scores not descending")
	}
	if limited := Rank(scores, 2); len(limited) != 2 || limited[1].DocID != 4 {
		t.Fatalf("Rank limit 2 = %v", limited)
	}
}
