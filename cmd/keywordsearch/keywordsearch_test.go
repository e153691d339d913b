package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/config"
)

func TestBuildAndQueryCmds(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			g := NewWithT(t)
			cfgPath := writeTestConfig(t, backend)

			output, err := executeCommand([]string{"build", "--config", cfgPath, "-o", "json"})
			g.Expect(err).ToNot(HaveOccurred())
			var report indexer.BuildReport
			g.Expect(json.Unmarshal([]byte(output), &report)).To(Succeed())
			g.Expect(report.Documents).To(Equal(4))

			output, err = executeCommand([]string{"tf", "2", "cars", "--config", cfgPath})
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(output).To(ContainSubstring("TF"))
			g.Expect(output).To(MatchRegexp(`2\s+cars\s+2`))

			output, err = executeCommand([]string{"search", "brave", "--config", cfgPath})
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(output).To(ContainSubstring("Brave"))
			g.Expect(output).ToNot(ContainSubstring("Cars"))

			output, err = executeCommand([]string{"bm25search", "cars", "--limit", "1", "--config", cfgPath, "-o", "json"})
			g.Expect(err).ToNot(HaveOccurred())
			var result executor.SearchResult
			g.Expect(json.Unmarshal([]byte(output), &result)).To(Succeed())
			g.Expect(result.Results).To(HaveLen(1))
			g.Expect(result.Results[0].Document.ID).To(Equal(2))
			g.Expect(result.Results[0].Score).To(BeNumerically(">", 0))

			output, err = executeCommand([]string{"stats", "--config", cfgPath})
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(output).To(ContainSubstring("DOCUMENTS"))
		})
	}
}

func TestTermStatisticCmds(t *testing.T) {
	g := NewWithT(t)
	cfgPath := writeTestConfig(t, config.BackendFile)
	_, err := executeCommand([]string{"build", "--config", cfgPath})
	g.Expect(err).ToNot(HaveOccurred())

	value := func(args ...string) float64 {
		output, err := executeCommand(append(args, "--config", cfgPath, "-o", "json"))
		g.Expect(err).ToNot(HaveOccurred(), "args %v", args)
		var res termResult
		g.Expect(json.Unmarshal([]byte(output), &res)).To(Succeed())
		return res.Value
	}

	idf := value("idf", "cars")
	g.Expect(idf).To(BeNumerically(">", 0))
	g.Expect(value("idf", "zebra")).To(BeNumerically(">", idf))
	g.Expect(value("tfidf", "2", "cars")).To(BeNumerically("~", 2*idf, 1e-12))
	g.Expect(value("bm25idf", "cars")).To(BeNumerically(">", 0))
	g.Expect(value("tf", "99", "cars")).To(BeZero())

	defaultScore := value("bm25tf", "2", "cars")
	g.Expect(defaultScore).To(BeNumerically(">", 0))
	g.Expect(value("bm25tf", "2", "cars", "--k1", "0")).To(BeNumerically("~", 1, 1e-12))
	g.Expect(value("bm25tf", "2", "cars")).To(Equal(defaultScore))
}

func TestCmdErrors(t *testing.T) {
	cfgPath := writeTestConfig(t, config.BackendFile)

	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{
			name:     "query before build",
			args:     []string{"search", "cars"},
			errorMsg: "missing index artifact",
		},
		{
			name:     "invalid output format",
			args:     []string{"stats", "-o", "yaml"},
			errorMsg: "--output must be",
		},
		{
			name:     "non-numeric document id",
			args:     []string{"tf", "two", "cars"},
			errorMsg: "document id must be an integer",
		},
		{
			name:     "missing arguments",
			args:     []string{"tfidf", "2"},
			errorMsg: "accepts 2 arg(s)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			_, err := executeCommand(append(tt.args, "--config", cfgPath))
			g.Expect(err).To(HaveOccurred())
			g.Expect(err.Error()).To(ContainSubstring(tt.errorMsg))
		})
	}
}

func TestSingleTermValidationCmds(t *testing.T) {
	g := NewWithT(t)
	cfgPath := writeTestConfig(t, config.BackendFile)
	_, err := executeCommand([]string{"build", "--config", cfgPath})
	g.Expect(err).ToNot(HaveOccurred())

	_, err = executeCommand([]string{"idf", "toy story", "--config", cfgPath})
	g.Expect(err).To(MatchError(ContainSubstring("more than one token")))

	_, err = executeCommand([]string{"idf", "the", "--config", cfgPath})
	g.Expect(err).To(MatchError(ContainSubstring("no searchable terms")))

	output, err := executeCommand([]string{"search", "zebra", "--config", cfgPath})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(output).To(ContainSubstring("no matching movies"))
}

func TestAnalyticsCmdRequiresBrokers(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("KS_KAFKA_BROKERS", "")
	_, err := executeCommand([]string{"analytics", "--config", writeTestConfig(t, config.BackendFile)})
	g.Expect(err).To(MatchError(ContainSubstring("no kafka brokers configured")))
}

func TestLoadtestCmd(t *testing.T) {
	g := NewWithT(t)
	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Query().Get("q")] = true
		mu.Unlock()
		if r.URL.Path != "/api/v1/search" || r.URL.Query().Get("mode") != executor.ModePostings {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	output, err := executeCommand([]string{"loadtest", "--config", writeTestConfig(t, config.BackendFile),
		"--url", srv.URL, "--duration", "200ms", "--concurrency", "4", "--mode", "postings", "-o", "json"})
	g.Expect(err).ToNot(HaveOccurred())

	var rep loadReport
	g.Expect(json.Unmarshal([]byte(output), &rep)).To(Succeed())
	g.Expect(rep.Requests).To(BeNumerically(">", 0))
	g.Expect(rep.Errors).To(BeZero())
	g.Expect(rep.StatusCodes).To(HaveKeyWithValue("200", rep.Requests))
	mu.Lock()
	defer mu.Unlock()
	g.Expect(seen).To(HaveKey("Brave"))
}

func TestLoadtestCmdRejectsBadMode(t *testing.T) {
	g := NewWithT(t)
	_, err := executeCommand([]string{"loadtest", "--config", writeTestConfig(t, config.BackendFile), "--mode", "fuzzy"})
	g.Expect(err).To(MatchError(ContainSubstring("--mode")))
}
