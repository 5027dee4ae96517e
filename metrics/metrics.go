// Package metrics provides Prometheus metrics for feed synchronization runs.
package metrics

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sljivkov/feedsync/domain"
)

// JobName is the Pushgateway job label.
const JobName = "feedsync"

// Metrics owns a private registry so runs can be pushed or served without
// touching the process-wide default registerer.
type Metrics struct {
	registry *prometheus.Registry

	outcomes     *prometheus.CounterVec
	transactions *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	lastAnswer   *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedsync_pair_outcomes_total",
				Help: "Per-pair synchronization outcomes",
			},
			[]string{"pair", "outcome"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedsync_transactions_total",
				Help: "State-changing transactions by kind and status",
			},
			[]string{"kind", "status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feedsync_run_duration_seconds",
				Help:    "Duration of a full synchronization pass",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "feedsync_last_run_timestamp_seconds",
				Help: "Unix timestamp of the last completed run",
			},
		),
		lastAnswer: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "feedsync_last_written_answer",
				Help: "Last answer written or seeded per pair (raw fixed point, may lose precision)",
			},
			[]string{"pair"},
		),
	}

	m.registry.MustRegister(m.outcomes, m.transactions, m.runDuration, m.lastRun, m.lastAnswer)

	return m
}

// Registry exposes the underlying registry for tests and exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransaction counts a submitted transaction. Safe on a nil receiver.
func (m *Metrics) ObserveTransaction(kind string, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.transactions.WithLabelValues(kind, status).Inc()
}

// Record accounts a finished run. Safe on a nil receiver.
func (m *Metrics) Record(outcomes []domain.SyncOutcome, took time.Duration) {
	if m == nil {
		return
	}

	for _, o := range outcomes {
		pair := o.Pair.String()
		m.outcomes.WithLabelValues(pair, string(o.Kind)).Inc()

		if (o.Kind == domain.OutcomeUpdated || o.Kind == domain.OutcomeProvisioned) && o.New != nil {
			f, _ := new(big.Float).SetInt(o.New).Float64()
			m.lastAnswer.WithLabelValues(pair).Set(f)
		}
	}

	m.runDuration.Observe(took.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current state to a Pushgateway, for one-shot runs that exit
// before they could be scraped.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if err := push.New(url, JobName).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}

	return nil
}
