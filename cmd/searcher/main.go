package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"backend", cfg.Indexer.Backend,
		"data_dir", cfg.Indexer.DataDir,
	)
	m := metrics.New()

	normalizer, err := indexer.NewNormalizer(cfg.Corpus)
	if err != nil {
		return err
	}
	engine, err := indexer.OpenEngine(ctx, cfg, normalizer, m, false)
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Load(ctx); err != nil {
		slog.Warn("no snapshot loaded, serving 503 until a reload succeeds", "error", err)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var producer *kafka.Producer
	var publisher analytics.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	collector := analytics.NewCollector(analytics.NewAggregator(), publisher, m, analytics.CollectorConfig{})

	checker := health.NewChecker()
	checker.Register("snapshot", func(ctx context.Context) health.ComponentHealth {
		st := engine.Current()
		if st == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot loaded"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", st.DocCount())}
	})
	if redisClient != nil {
		checker.Register("redis", health.Optional(health.Ping(redisClient.Ping)))
	}
	if producer != nil {
		checker.Register("kafka", health.Optional(health.Ping(producer.Ping)))
	}

	h := handler.New(executor.New(engine, normalizer), engine, queryCache, collector, m, cfg.Search)
	analyticsH := analytics.NewHandler(collector)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{server}
	if cfg.Metrics.Enabled {
		servers = append(servers, metrics.NewServer(cfg.Metrics.Port))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return collector.Run(gctx)
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.RunCleanup(gctx)
			return nil
		})
	}
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("server shutdown error", "addr", srv.Addr, "error", err)
			}
		}
		collector.Close()
		return nil
	})

	engine.StartReloadLoop(gctx, cfg.Indexer.ReloadInterval, func() {
		h.AfterReload(gctx, 0)
	})

	return g.Wait()
}
