package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/kafka"
)

type analyticsFlags struct {
	fromBeginning bool
	duration      time.Duration
}

var analyticsArgs analyticsFlags

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Aggregate search analytics events from Kafka",
	Long: `Analytics consumes the search analytics topic as part of the configured
consumer group until --duration elapses or the command is interrupted, then
prints the aggregated statistics.`,
	Args: cobra.NoArgs,
	RunE: analyticsCmdRun,
}

func init() {
	analyticsCmd.Flags().BoolVar(&analyticsArgs.fromBeginning, "from-beginning", false,
		"start a new consumer group at the oldest retained event")
	analyticsCmd.Flags().DurationVar(&analyticsArgs.duration, "duration", 10*time.Second,
		"how long to consume before printing")
	rootCmd.AddCommand(analyticsCmd)
}

func analyticsCmdRun(cmd *cobra.Command, args []string) error {
	cfg := rootArgs.cfg
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured, set kafka.brokers or KS_KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, analyticsArgs.duration)
	defer cancel()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analyticsArgs.fromBeginning,
		analytics.HandleMessage(agg))
	if err := consumer.Run(ctx); err != nil {
		return err
	}

	stats := agg.Stats()
	rows := [][]string{
		{"total searches", strconv.FormatInt(stats.TotalSearches, 10)},
		{"zero results", strconv.FormatInt(stats.ZeroResultCount, 10)},
		{"cache hits", strconv.FormatInt(stats.CacheHits, 10)},
		{"index reloads", strconv.FormatInt(stats.IndexReloads, 10)},
		{"avg latency ms", formatScore(stats.AvgLatencyMs)},
		{"p99 latency ms", formatScore(stats.P99LatencyMs)},
	}
	for _, q := range stats.TopQueries {
		rows = append(rows, []string{"top query: " + q.Query, strconv.FormatInt(q.Count, 10)})
	}
	return render(cmd, stats, []string{"Metric", "Value"}, rows)
}
