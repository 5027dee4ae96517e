// Package handler serves the last synchronization report and metrics over HTTP
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/sljivkov/feedsync/pricefeed"
)

// DefaultReadyTimeout is how long /report waits for the first run
const DefaultReadyTimeout = 3 * time.Second

// Reports keeps the most recent run report
type Reports struct {
	mu      sync.RWMutex
	last    pricefeed.Report
	readyCh chan struct{} // closed once the first report is stored
	once    sync.Once
	timeout time.Duration
}

// NewReports creates an empty report holder
func NewReports(readyTimeout time.Duration) *Reports {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}

	return &Reports{
		readyCh: make(chan struct{}),
		timeout: readyTimeout,
	}
}

// Store replaces the last report
func (r *Reports) Store(report pricefeed.Report) {
	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	r.once.Do(func() { close(r.readyCh) })
}

// Last returns the last report and whether one was stored
func (r *Reports) Last() (pricefeed.Report, bool) {
	select {
	case <-r.readyCh:
	default:
		return pricefeed.Report{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.last, true
}

func (r *Reports) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Wait until the first run finished
	select {
	case <-r.readyCh:
	case <-req.Context().Done():
		return
	case <-time.After(r.timeout):
		http.Error(w, "no run finished yet", http.StatusServiceUnavailable)

		return
	}

	r.mu.RLock()
	view := r.last.View()
	r.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}
}

// NewMux routes /report, /metrics and /healthz
func NewMux(reports *Reports, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /report", reports)
	mux.Handle("GET /metrics", metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
