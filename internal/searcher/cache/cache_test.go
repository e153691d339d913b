package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/redis"
)

type memoryBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failing bool
	gets    int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (m *memoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failing {
		return nil, errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, pkgredis.ErrNotFound
	}
	return v, nil
}

func (m *memoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("connection refused")
	}
	m.data[key] = value
	return nil
}

func (m *memoryBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "cars",
		Mode:      executor.ModeBM25,
		Terms:     []string{"car"},
		TotalHits: 1,
		Results: []executor.Result{
			{Document: corpus.Document{ID: 2, Title: "Cars", Description: "Racing cars in a fast world"}, Score: 0.91},
		},
	}
}

func TestKey(t *testing.T) {
	p := ranker.DefaultParams()
	base := Key(executor.ModeBM25, []string{"car", "race"}, 5, p)
	if !strings.HasPrefix(base, keyPrefix) {
		t.Fatalf("key %q lacks prefix", base)
	}
	if base != Key(executor.ModeBM25, []string{"car", "race"}, 5, p) {
		t.Fatal("key not deterministic")
	}
	variants := []string{
		Key(executor.ModePostings, []string{"car", "race"}, 5, p),
		Key(executor.ModeBM25, []string{"race", "car"}, 5, p),
		Key(executor.ModeBM25, []string{"car", "race"}, 10, p),
		Key(executor.ModeBM25, []string{"car", "race"}, 5, ranker.Params{K1: 1.2, B: 0.75}),
		Key(executor.ModeBM25, []string{"car", "race", "race"}, 5, p),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
	// BM25 params do not affect postings searches.
	if Key(executor.ModePostings, []string{"car"}, 5, p) != Key(executor.ModePostings, []string{"car"}, 5, ranker.Params{K1: 9}) {
		t.Error("postings key depends on bm25 params")
	}
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := New(newMemoryBackend(), time.Minute, nil)
	key := Key(executor.ModeBM25, []string{"car"}, 5, ranker.DefaultParams())
	computed := 0
	compute := func() (*executor.SearchResult, error) {
		computed++
		return sampleResult(), nil
	}

	first, hit, err := c.GetOrCompute(ctx, key, compute)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	second, hit, err := c.GetOrCompute(ctx, key, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if computed != 1 {
		t.Fatalf("computed %d times, want 1", computed)
	}
	if second.Results[0].Document.Title != first.Results[0].Document.Title || second.Results[0].Score != 0.91 {
		t.Fatalf("cached result differs: %+v", second)
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.HitRate != 0.5 || stats.Circuit != "closed" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	key := Key(executor.ModePostings, []string{"car"}, 5, ranker.Params{})
	var computed atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		computed.Add(1)
		<-release
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), key, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := computed.Load(); n != 1 {
		t.Fatalf("computed %d times, want 1", n)
	}
}

func TestComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	c := New(backend, time.Minute, nil)
	key := Key(executor.ModeBM25, []string{"car"}, 5, ranker.DefaultParams())
	boom := errors.New("index unavailable")
	if _, _, err := c.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if len(backend.data) != 0 {
		t.Fatal("failed computation was cached")
	}
}

func TestFailingBackendOpensCircuit(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	backend.failing = true
	c := New(backend, time.Minute, nil)
	key := Key(executor.ModeBM25, []string{"car"}, 5, ranker.DefaultParams())

	for i := 0; i < 10; i++ {
		res, hit, err := c.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) { return sampleResult(), nil })
		if err != nil || hit || res == nil {
			t.Fatalf("call %d: res=%v hit=%v err=%v", i, res, hit, err)
		}
	}
	if c.Stats().Circuit != "open" {
		t.Fatalf("circuit = %s, want open", c.Stats().Circuit)
	}
	backend.mu.Lock()
	gets := backend.gets
	backend.mu.Unlock()
	if gets >= 10 {
		t.Fatalf("backend saw %d gets; open circuit should bypass it", gets)
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	backend.data["other:key"] = []byte("x")
	c := New(backend, time.Minute, nil)
	key := Key(executor.ModeBM25, []string{"car"}, 5, ranker.DefaultParams())
	c.Set(ctx, key, sampleResult())

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("entry survived invalidation")
	}
	if _, ok := backend.data["other:key"]; !ok {
		t.Fatal("invalidation removed a key outside the cache prefix")
	}
}
