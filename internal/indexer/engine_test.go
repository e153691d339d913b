package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
)

var normalizer = tokenizer.New(tokenizer.NewStopwords("a", "and", "in", "with"), nil)

func staticLoader(docs ...corpus.Document) corpus.Loader {
	return corpus.LoaderFunc(func(ctx context.Context) ([]corpus.Document, error) {
		return docs, nil
	})
}

func movies() []corpus.Document {
	return []corpus.Document{
		{ID: 1, Title: "Brave", Description: "A princess with bow and arrow"},
		{ID: 2, Title: "Cars", Description: "Racing cars in a fast world"},
	}
}

func TestRebuildPublishesAndSaves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEngine(staticLoader(movies()...), normalizer, snapshot.NewFileStore(dir, snapshot.JSON, false), m)

	if e.Current() != nil {
		t.Fatal("expected no snapshot before the first build")
	}
	report, err := e.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Documents != 2 || report.Tokens != 9 {
		t.Fatalf("report = %+v", report)
	}
	if e.Current() == nil || e.Current().DocCount() != 2 {
		t.Fatalf("current = %+v", e.Current())
	}
	if got := testutil.ToFloat64(m.IndexDocuments); got != 2 {
		t.Fatalf("index_documents = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SnapshotOperationsTotal.WithLabelValues("save", "success")); got != 1 {
		t.Fatalf("snapshot saves = %v, want 1", got)
	}

	loaded := NewEngine(nil, normalizer, snapshot.NewFileStore(dir, snapshot.JSON, false), nil)
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Current().Postings("car"); len(got) != 1 || got[0] != 2 {
		t.Fatalf("loaded postings(car) = %v", got)
	}
}

func TestLoadMissingSnapshotKeepsNothingPublished(t *testing.T) {
	e := NewEngine(nil, normalizer, snapshot.NewFileStore(t.TempDir(), snapshot.JSON, false), nil)
	err := e.Load(context.Background())
	if !errors.Is(err, apperrors.ErrMissingIndexArtifact) {
		t.Fatalf("expected ErrMissingIndexArtifact, got %v", err)
	}
	if e.Current() != nil {
		t.Fatal("failed load published a snapshot")
	}
}

func TestFailedRebuildKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	docs := movies()
	var loadErr error
	loader := corpus.LoaderFunc(func(ctx context.Context) ([]corpus.Document, error) {
		mu.Lock()
		defer mu.Unlock()
		return docs, loadErr
	})
	e := NewEngine(loader, normalizer, snapshot.NewFileStore(t.TempDir(), snapshot.CBOR, true), nil)
	if _, err := e.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	before := e.Current()

	mu.Lock()
	loadErr = errors.New("database unavailable")
	mu.Unlock()
	if _, err := e.Rebuild(ctx); err == nil {
		t.Fatal("expected loader error")
	}
	if e.Current() != before {
		t.Fatal("snapshot replaced after a failed rebuild")
	}

	mu.Lock()
	loadErr = nil
	docs = append(docs, corpus.Document{ID: 2, Title: "Cars again"})
	mu.Unlock()
	_, err := e.Rebuild(ctx)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate ids, got %v", err)
	}
	var verr *corpus.ValidationError
	if !errors.As(err, &verr) || verr.Documents[2] == "" {
		t.Fatalf("expected validation error naming document 2, got %v", err)
	}
	if e.Current() != before {
		t.Fatal("snapshot replaced after an invalid corpus")
	}
}

func TestRebuildEmptyCorpus(t *testing.T) {
	e := NewEngine(staticLoader(), normalizer, snapshot.NewFileStore(t.TempDir(), snapshot.JSON, false), nil)
	report, err := e.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Documents != 0 || e.Current() == nil {
		t.Fatalf("report = %+v, current = %v", report, e.Current())
	}
}

func TestRebuildIndexesUntitledDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docs := append(movies(), corpus.Document{ID: 3, Title: "", Description: "Toys come to life"})
	e := NewEngine(staticLoader(docs...), normalizer, snapshot.NewFileStore(dir, snapshot.JSON, false), nil)

	report, err := e.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Documents != 3 {
		t.Fatalf("report = %+v", report)
	}
	if got := e.Current().Postings("toy"); len(got) != 1 || got[0] != 3 {
		t.Fatalf("postings(toy) = %v", got)
	}

	loaded := NewEngine(nil, normalizer, snapshot.NewFileStore(dir, snapshot.JSON, false), nil)
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc, ok := loaded.Current().Document(3); !ok || doc.Title != "" {
		t.Fatalf("document 3 = %+v, %v", doc, ok)
	}
}

func TestRebuildWithoutLoader(t *testing.T) {
	e := NewEngine(nil, normalizer, snapshot.NewFileStore(t.TempDir(), snapshot.JSON, false), nil)
	if _, err := e.Rebuild(context.Background()); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReloadLoopPicksUpNewSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()

	writer := NewEngine(staticLoader(movies()...), normalizer, snapshot.NewFileStore(dir, snapshot.JSON, false), nil)
	if _, err := writer.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	reader := NewEngine(nil, normalizer, snapshot.NewFileStore(dir, snapshot.JSON, false), nil)
	if err := reader.Load(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan struct{}, 1)
	reader.StartReloadLoop(ctx, 5*time.Millisecond, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	more := append(movies(), corpus.Document{ID: 3, Title: "Coco", Description: "A boy and his guitar"})
	writer.loader = staticLoader(more...)
	if _, err := writer.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for reader.Current().DocCount() != 3 {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatalf("reader still serves %d documents", reader.Current().DocCount())
		}
	}
}
