package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/kafka"
)

type envelope struct {
	Type EventType `json:"type"`
}

// HandleMessage returns a Kafka handler that replays published events into
// agg. Malformed or unknown events are logged and skipped so the consumer
// still commits past them.
func HandleMessage(agg *Aggregator) kafka.MessageHandler {
	logger := slog.Default().With("component", "analytics-consumer")
	return func(ctx context.Context, key, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			logger.Warn("skipping malformed event", "key", string(key), "error", err)
			return nil
		}
		switch env.Type {
		case EventSearch, EventZeroResult:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				logger.Warn("skipping malformed search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		case EventIndexReload:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				logger.Warn("skipping malformed index event", "error", err)
				return nil
			}
			agg.RecordIndex(event)
		default:
			logger.Warn("skipping unknown event type", "type", env.Type)
		}
		return nil
	}
}
