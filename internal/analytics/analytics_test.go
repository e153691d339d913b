package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
)

func search(query string, terms []string, hits int, latency float64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Type:      EventSearch,
		Mode:      "bm25",
		Query:     query,
		Terms:     terms,
		TotalHits: hits,
		Returned:  hits,
		LatencyMs: latency,
		CacheHit:  cacheHit,
		Timestamp: time.Now(),
	}
}

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	a.RecordSearch(search("Cars", []string{"car"}, 1, 1, false))
	a.RecordSearch(search("cars!", []string{"car"}, 1, 2, true))
	a.RecordSearch(search("zebra", []string{"zebra"}, 0, 3, false))
	postings := search("brave", []string{"brave"}, 1, 4, false)
	postings.Mode = "postings"
	a.RecordSearch(postings)
	a.RecordIndex(IndexEvent{Type: EventIndexReload, Documents: 2})

	stats := a.Stats()
	if stats.TotalSearches != 4 || stats.CacheHits != 1 || stats.CacheMisses != 3 {
		t.Fatalf("counts = %+v", stats)
	}
	if stats.SearchesByMode["bm25"] != 3 || stats.SearchesByMode["postings"] != 1 {
		t.Fatalf("by mode = %v", stats.SearchesByMode)
	}
	if stats.ZeroResultCount != 1 || len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "zebra" {
		t.Fatalf("zero results = %d %v", stats.ZeroResultCount, stats.ZeroResultQueries)
	}
	if stats.TopQueries[0] != (QueryCount{Query: "car", Count: 2}) {
		t.Fatalf("top query = %+v", stats.TopQueries[0])
	}
	if stats.AvgLatencyMs != 2.5 || stats.P50LatencyMs != 3 || stats.P99LatencyMs != 4 {
		t.Fatalf("latency avg=%v p50=%v p99=%v", stats.AvgLatencyMs, stats.P50LatencyMs, stats.P99LatencyMs)
	}
	if stats.IndexReloads != 1 {
		t.Fatalf("index reloads = %d", stats.IndexReloads)
	}
}

func TestAggregatorLatencyWindow(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < latencyWindow+10; i++ {
		a.RecordSearch(search("q", []string{"q"}, 1, 100, false))
	}
	a.mu.Lock()
	n := len(a.latencies)
	a.mu.Unlock()
	if n != latencyWindow {
		t.Fatalf("kept %d latencies, want %d", n, latencyWindow)
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(NewAggregator(), pub, m, CollectorConfig{BatchSize: 2, FlushInterval: time.Hour})
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(context.Background()) }()

	for i := 0; i < 5; i++ {
		c.TrackSearch(search("cars", []string{"car"}, 1, 1, false))
	}
	c.Close()
	if err := <-runDone; err != nil {
		t.Fatal(err)
	}
	if got := pub.total(); got != 5 {
		t.Fatalf("published %d events, want 5", got)
	}
	for _, b := range pub.batches {
		if len(b) > 2 {
			t.Fatalf("batch of %d exceeds batch size", len(b))
		}
	}
	if got := testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("published")); got != 5 {
		t.Fatalf("published metric = %v", got)
	}
	if c.Stats().TotalSearches != 5 {
		t.Fatalf("aggregated %d searches", c.Stats().TotalSearches)
	}

	c.TrackSearch(search("late", []string{"late"}, 1, 1, false))
	if got := testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("dropped metric = %v, want 1", got)
	}
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(NewAggregator(), pub, nil, CollectorConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.TrackIndex(IndexEvent{Type: EventIndexReload, Documents: 3})
	deadline := time.Now().Add(2 * time.Second)
	for pub.total() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event not flushed by the interval")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(NewAggregator(), pub, m, CollectorConfig{BatchSize: 1})
	go c.Run(context.Background())
	c.TrackSearch(search("cars", []string{"car"}, 1, 1, false))
	c.Close()
	if got := testutil.ToFloat64(m.AnalyticsEventsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed metric = %v, want 1", got)
	}
}

func TestCollectorWithoutPublisher(t *testing.T) {
	c := NewCollector(NewAggregator(), nil, nil, CollectorConfig{})
	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.TrackSearch(search("cars", []string{"car"}, 1, 1, false))
	c.Close()
	if c.Stats().TotalSearches != 1 {
		t.Fatal("search not aggregated")
	}
}

func TestHandlerStats(t *testing.T) {
	c := NewCollector(NewAggregator(), nil, nil, CollectorConfig{})
	c.TrackSearch(search("cars", []string{"car"}, 1, 1, true))
	rec := httptest.NewRecorder()
	NewHandler(c).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 || stats.CacheHits != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
