// Package benchmark contains Go benchmarks for index building, snapshot
// persistence and the search pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/snapshot"
)

var vocabulary = []string{
	"space", "ranger", "cowboy", "toy", "race", "car", "princess", "arrow",
	"chef", "rat", "paris", "ocean", "clownfish", "robot", "earth", "family",
	"superhero", "monster", "music", "guitar", "emotion", "city", "plane", "soul",
}

// syntheticCorpus returns n documents whose descriptions cycle through the
// vocabulary so every term has a predictable document frequency.
func syntheticCorpus(n int) []corpus.Document {
	docs := make([]corpus.Document, n)
	for i := range docs {
		desc := ""
		for j := 0; j < 12; j++ {
			desc += vocabulary[(i*7+j*3)%len(vocabulary)] + " "
		}
		docs[i] = corpus.Document{
			ID:          i + 1,
			Title:       fmt.Sprintf("Movie %d %s", i+1, vocabulary[i%len(vocabulary)]),
			Description: desc,
		}
	}
	return docs
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		docs := syntheticCorpus(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := index.Build(docs, normalizer); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSnapshotSaveLoad(b *testing.B) {
	st, err := index.Build(syntheticCorpus(5000), normalizer)
	if err != nil {
		b.Fatal(err)
	}
	stores := map[string]func(dir string) snapshot.Store{
		"json":      func(dir string) snapshot.Store { return snapshot.NewFileStore(dir, snapshot.JSON, false) },
		"cbor_zstd": func(dir string) snapshot.Store { return snapshot.NewFileStore(dir, snapshot.CBOR, true) },
		"sqlite":    func(dir string) snapshot.Store { return snapshot.NewSQLiteStore(dir) },
	}
	ctx := context.Background()
	for name, open := range stores {
		b.Run(name, func(b *testing.B) {
			store := open(b.TempDir())
			defer store.Close()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := store.Save(ctx, st); err != nil {
					b.Fatal(err)
				}
				if _, err := store.Load(ctx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
