package metrics

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer returns the scrape server for port. The caller owns its
// lifecycle (ListenAndServe and Shutdown).
func NewServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Keyword Search Metrics</h1><p><a href="/metrics">/metrics</a></p></body></html>`)
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
