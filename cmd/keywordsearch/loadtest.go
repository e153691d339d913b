package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
)

type loadtestFlags struct {
	url         string
	concurrency int
	duration    time.Duration
	mode        string
	limit       int
}

var loadtestArgs loadtestFlags

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Drive a running search service with concurrent title queries",
	Long: `Loadtest sends search requests built from the corpus titles to a running
search service from --concurrency workers for --duration, then prints
throughput, latency percentiles and status code counts.`,
	Args: cobra.NoArgs,
	RunE: loadtestCmdRun,
}

func init() {
	loadtestCmd.Flags().StringVar(&loadtestArgs.url, "url", "http://localhost:8080", "base URL of the search service")
	loadtestCmd.Flags().IntVar(&loadtestArgs.concurrency, "concurrency", 10, "number of concurrent workers")
	loadtestCmd.Flags().DurationVar(&loadtestArgs.duration, "duration", 30*time.Second, "test duration")
	loadtestCmd.Flags().StringVar(&loadtestArgs.mode, "mode", executor.ModeBM25, "search mode, bm25 or postings")
	loadtestCmd.Flags().IntVar(&loadtestArgs.limit, "limit", 10, "results requested per query")
	rootCmd.AddCommand(loadtestCmd)
}

type loadReport struct {
	Requests    int64            `json:"requests"`
	Errors      int64            `json:"errors"`
	RPS         float64          `json:"requests_per_second"`
	P50Ms       float64          `json:"p50_ms"`
	P95Ms       float64          `json:"p95_ms"`
	P99Ms       float64          `json:"p99_ms"`
	MaxMs       float64          `json:"max_ms"`
	StatusCodes map[string]int64 `json:"status_codes"`
}

type loadRecorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	failed    int64
	codes     map[int]int64
}

func (r *loadRecorder) record(d time.Duration, status int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.latencies = append(r.latencies, d)
	r.codes[status]++
}

func (r *loadRecorder) report(elapsed time.Duration) loadReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	slices.Sort(r.latencies)
	rep := loadReport{
		Requests:    int64(len(r.latencies)) + r.failed,
		Errors:      r.failed,
		StatusCodes: make(map[string]int64, len(r.codes)),
	}
	for code, n := range r.codes {
		rep.StatusCodes[strconv.Itoa(code)] = n
		if code >= 300 {
			rep.Errors += n
		}
	}
	if elapsed > 0 {
		rep.RPS = float64(rep.Requests) / elapsed.Seconds()
	}
	if n := len(r.latencies); n > 0 {
		rep.P50Ms = percentileMs(r.latencies, 50)
		rep.P95Ms = percentileMs(r.latencies, 95)
		rep.P99Ms = percentileMs(r.latencies, 99)
		rep.MaxMs = durationMs(r.latencies[n-1])
	}
	return rep
}

func percentileMs(sorted []time.Duration, p int) float64 {
	idx := (len(sorted)*p + 99) / 100
	return durationMs(sorted[max(idx-1, 0)])
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func loadtestCmdRun(cmd *cobra.Command, args []string) error {
	if loadtestArgs.concurrency < 1 {
		return fmt.Errorf("--concurrency must be positive, got %d", loadtestArgs.concurrency)
	}
	if loadtestArgs.mode != executor.ModeBM25 && loadtestArgs.mode != executor.ModePostings {
		return fmt.Errorf("--mode must be %q or %q", executor.ModeBM25, executor.ModePostings)
	}
	base, err := url.Parse(loadtestArgs.url)
	if err != nil {
		return fmt.Errorf("parsing --url: %w", err)
	}
	docs, err := corpus.LoadMovies(rootArgs.cfg.Corpus.MoviesPath)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("corpus %s has no titles to query", rootArgs.cfg.Corpus.MoviesPath)
	}
	queries := make([]string, len(docs))
	for i, d := range docs {
		queries[i] = d.Title
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        loadtestArgs.concurrency * 2,
			MaxIdleConnsPerHost: loadtestArgs.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(cmd.Context(), loadtestArgs.duration)
	defer cancel()

	rec := &loadRecorder{codes: make(map[int]int64)}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range loadtestArgs.concurrency {
		g.Go(func() error {
			for i := w; gctx.Err() == nil; i++ {
				searchURL := *base
				searchURL.Path = "/api/v1/search"
				searchURL.RawQuery = url.Values{
					"q":     {queries[i%len(queries)]},
					"mode":  {loadtestArgs.mode},
					"limit": {strconv.Itoa(loadtestArgs.limit)},
				}.Encode()
				sendSearch(gctx, client, searchURL.String(), rec)
			}
			return nil
		})
	}
	_ = g.Wait()
	rep := rec.report(time.Since(start))

	rows := [][]string{
		{"requests", strconv.FormatInt(rep.Requests, 10)},
		{"errors", strconv.FormatInt(rep.Errors, 10)},
		{"requests/sec", strconv.FormatFloat(rep.RPS, 'f', 2, 64)},
		{"p50 ms", strconv.FormatFloat(rep.P50Ms, 'f', 3, 64)},
		{"p95 ms", strconv.FormatFloat(rep.P95Ms, 'f', 3, 64)},
		{"p99 ms", strconv.FormatFloat(rep.P99Ms, 'f', 3, 64)},
		{"max ms", strconv.FormatFloat(rep.MaxMs, 'f', 3, 64)},
	}
	codes := make([]string, 0, len(rep.StatusCodes))
	for code := range rep.StatusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		rows = append(rows, []string{"status " + code, strconv.FormatInt(rep.StatusCodes[code], 10)})
	}
	return render(cmd, rep, []string{"Metric", "Value"}, rows)
}

func sendSearch(ctx context.Context, client *http.Client, rawURL string, rec *loadRecorder) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		rec.record(0, 0, err)
		return
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		// The run ending mid-request is not a service error.
		if ctx.Err() == nil {
			rec.record(0, 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	rec.record(time.Since(start), resp.StatusCode, nil)
}
