package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/tracing"
)

// Reloader re-reads the saved snapshot and publishes it.
type Reloader interface {
	Load(ctx context.Context) error
}

type Handler struct {
	executor  *executor.Executor
	reloader  Reloader
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	search    config.SearchConfig
	logger    *slog.Logger
}

// New wires the search API. queryCache, collector and m may be nil. The BM25
// parameters in search are used as given, zero included.
func New(
	exec *executor.Executor,
	reloader Reloader,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	search config.SearchConfig,
) *Handler {
	if search.DefaultLimit <= 0 {
		search.DefaultLimit = executor.DefaultLimit
	}
	if search.MaxResults < search.DefaultLimit {
		search.MaxResults = search.DefaultLimit
	}
	return &Handler{
		executor:  exec,
		reloader:  reloader,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		search:    search,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the search API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.search.DefaultLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.search.MaxResults)
	}

	mode := q.Get("mode")
	if mode == "" {
		mode = executor.ModeBM25
	}
	if mode != executor.ModeBM25 && mode != executor.ModePostings {
		h.writeError(w, http.StatusBadRequest, "mode must be 'bm25' or 'postings'")
		return
	}

	params, err := h.params(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := tracing.Start(ctx, "search")
	span.SetAttr("mode", mode)
	defer span.End(ctx)

	_, planSpan := tracing.Start(ctx, "plan")
	plan := h.executor.Plan(query)
	planSpan.SetAttr("terms", len(plan.Terms))
	planSpan.End(ctx)
	if plan.Empty() {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Mode:    mode,
			Terms:   plan.Terms,
			Results: []executor.Result{},
		})
		return
	}

	compute := func() (*executor.SearchResult, error) {
		ctx, execSpan := tracing.Start(ctx, "execute")
		defer execSpan.End(ctx)
		if mode == executor.ModePostings {
			return h.executor.Search(ctx, plan, limit)
		}
		return h.executor.RankBM25(ctx, plan, limit, params)
	}

	var result *executor.SearchResult
	cacheStatus := "none"
	cacheHit := false
	if h.cache != nil {
		key := cache.Key(mode, plan.Terms, limit, params)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	span.SetAttr("cache", cacheStatus)
	if err != nil {
		log.Error("search execution failed", "query", query, "mode", mode, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues(mode, "error").Inc()
		}
		h.writeAppError(w, err)
		return
	}

	// Cached and shared results are never mutated in place.
	out := *result
	out.Query = query

	latency := time.Since(start)
	resultType := "hit"
	eventType := analytics.EventSearch
	if out.TotalHits == 0 {
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
		h.metrics.SearchLatency.WithLabelValues(mode, cacheStatus).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.WithLabelValues(mode).Observe(float64(len(out.Results)))
	}
	log.Info("search completed",
		"query", query,
		"mode", mode,
		"total_hits", out.TotalHits,
		"returned", len(out.Results),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		h.collector.TrackSearch(analytics.SearchEvent{
			Type:      eventType,
			Mode:      mode,
			Query:     query,
			Terms:     plan.Terms,
			TotalHits: out.TotalHits,
			Returned:  len(out.Results),
			LatencyMs: float64(latency.Microseconds()) / 1000,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(r),
		})
	}

	h.writeJSON(w, http.StatusOK, &out)
}

// TermStats is the body of GET /api/v1/terms/{term}. The per-document fields
// are present only when doc_id is given.
type TermStats struct {
	Term              string   `json:"term"`
	DocumentFrequency int      `json:"document_frequency"`
	IDF               float64  `json:"idf"`
	BM25IDF           float64  `json:"bm25_idf"`
	DocID             *int     `json:"doc_id,omitempty"`
	TermFrequency     *int     `json:"term_frequency,omitempty"`
	TFIDF             *float64 `json:"tfidf,omitempty"`
	BM25TermScore     *float64 `json:"bm25_tf,omitempty"`
}

func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	text := r.PathValue("term")
	stats := TermStats{Term: text}

	var err error
	if stats.DocumentFrequency, err = h.executor.DocumentFrequency(text); err != nil {
		h.writeAppError(w, err)
		return
	}
	if stats.IDF, err = h.executor.IDF(text); err != nil {
		h.writeAppError(w, err)
		return
	}
	if stats.BM25IDF, err = h.executor.BM25IDF(text); err != nil {
		h.writeAppError(w, err)
		return
	}

	if raw := r.URL.Query().Get("doc_id"); raw != "" {
		docID, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "doc_id must be an integer")
			return
		}
		params, err := h.params(r)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tf, err := h.executor.TermFrequency(docID, text)
		if err != nil {
			h.writeAppError(w, err)
			return
		}
		tfidf, err := h.executor.TFIDF(docID, text)
		if err != nil {
			h.writeAppError(w, err)
			return
		}
		bm25, err := h.executor.BM25TermScore(docID, text, params)
		if err != nil {
			h.writeAppError(w, err)
			return
		}
		stats.DocID = &docID
		stats.TermFrequency = &tf
		stats.TFIDF = &tfidf
		stats.BM25TermScore = &bm25
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}
	doc, err := h.executor.Document(id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.executor.Stats()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Reload re-reads the saved snapshot, swaps it in and drops cached results
// computed against the previous one.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()

	if err := h.reloader.Load(ctx); err != nil {
		log.Error("snapshot reload failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.AfterReload(ctx, time.Since(start))

	stats, err := h.executor.Stats()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "reloaded",
		"documents":      stats.Documents,
		"terms":          stats.Terms,
		"avg_doc_length": stats.AvgDocLength,
	})
}

// AfterReload invalidates the cache and records an index reload event. It is
// also the callback for the periodic reload loop.
func (h *Handler) AfterReload(ctx context.Context, took time.Duration) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	if h.collector == nil {
		return
	}
	stats, err := h.executor.Stats()
	if err != nil {
		return
	}
	h.collector.TrackIndex(analytics.IndexEvent{
		Type:       analytics.EventIndexReload,
		Documents:  stats.Documents,
		Terms:      stats.Terms,
		DurationMs: float64(took.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// params reads k1 and b from the query string, falling back to the
// configured defaults.
func (h *Handler) params(r *http.Request) (ranker.Params, error) {
	p := ranker.Params{K1: h.search.K1, B: h.search.B}
	q := r.URL.Query()
	if raw := q.Get("k1"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return p, fmt.Errorf("k1 must be a non-negative number")
		}
		p.K1 = v
	}
	if raw := q.Get("b"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return p, fmt.Errorf("b must be a number between 0 and 1")
		}
		p.B = v
	}
	return p, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeError(w, status, message)
}
