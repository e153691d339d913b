package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
)

// Publisher ships a batch of events; pkg/kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}

// Collector records every event in the Aggregator synchronously and, with a
// Publisher, queues it for batched publishing. Track never blocks: when the
// queue is full the event is dropped from publishing but still aggregated.
type Collector struct {
	aggregator *Aggregator
	publisher  Publisher
	metrics    *metrics.Metrics
	cfg        CollectorConfig
	eventCh    chan kafka.Event
	logger     *slog.Logger
	done       chan struct{}

	// mu guards closed so enqueue never sends on a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewCollector wires a collector. publisher and m may be nil.
func NewCollector(aggregator *Aggregator, publisher Publisher, m *metrics.Metrics, cfg CollectorConfig) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		aggregator: aggregator,
		publisher:  publisher,
		metrics:    m,
		cfg:        cfg,
		eventCh:    make(chan kafka.Event, cfg.BufferSize),
		logger:     slog.Default().With("component", "analytics-collector"),
		done:       make(chan struct{}),
	}
}

// Run publishes queued events until ctx is done or Close is called, then
// flushes what is left. It returns immediately when there is no publisher.
func (c *Collector) Run(ctx context.Context) error {
	defer close(c.done)
	if c.publisher == nil {
		return nil
	}
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), batch)
				return nil
			}
			batch = append(batch, event)
			if len(batch) >= c.cfg.BatchSize {
				c.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(ctx, batch)
			batch = batch[:0]
		case <-ctx.Done():
			batch = c.drain(batch)
			c.flush(context.Background(), batch)
			return nil
		}
	}
}

func (c *Collector) TrackSearch(event SearchEvent) {
	c.aggregator.RecordSearch(event)
	c.enqueue(kafka.Event{Key: string(event.Type), Value: event})
}

func (c *Collector) TrackIndex(event IndexEvent) {
	c.aggregator.RecordIndex(event)
	c.enqueue(kafka.Event{Key: string(event.Type), Value: event})
}

func (c *Collector) Stats() AggregatedStats {
	return c.aggregator.Stats()
}

// Close stops accepting events and waits for Run to flush. It must only be
// called while Run is running or after it has returned.
func (c *Collector) Close() {
	if c.publisher == nil {
		return
	}
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) enqueue(event kafka.Event) {
	if c.publisher == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.count("dropped", 1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
		return
	}
	c.count("published", len(batch))
}

func (c *Collector) count(outcome string, n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}
