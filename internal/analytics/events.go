// Package analytics records search and index events. Every event feeds an
// in-process Aggregator served at /api/v1/analytics; when Kafka brokers are
// configured the Collector also publishes events in batches.
package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventZeroResult  EventType = "zero_result"
	EventIndexReload EventType = "index_reload"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Mode      string    `json:"mode"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
