package analytics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// latencyWindow caps how many recent latencies feed the percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	SearchesByMode    map[string]int64 `json:"searches_by_mode"`
	IndexReloads      int64            `json:"index_reloads"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics in memory. Queries are counted
// by their normalized terms so "Cars" and "cars!" share an entry.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	searchesByMode    map[string]int64
	indexReloads      int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		searchesByMode:    make(map[string]int64),
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.searchesByMode[event.Mode]++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	key := queryKey(event)
	a.queryCounts[key]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[key]++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexReloads++
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		SearchesByMode:  make(map[string]int64, len(a.searchesByMode)),
		IndexReloads:    a.indexReloads,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
	}
	for mode, n := range a.searchesByMode {
		stats.SearchesByMode[mode] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func queryKey(event SearchEvent) string {
	if len(event.Terms) == 0 {
		return event.Query
	}
	return strings.Join(event.Terms, " ")
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
