// Package metrics exposes Prometheus collectors for harvest runs.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	fetchTotal           *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	fetchRetriesTotal    *prometheus.CounterVec
	sourcesTotal         *prometheus.CounterVec
	recordsTotal         *prometheus.CounterVec
	rateLimitDelay       *prometheus.HistogramVec
	runsTotal            *prometheus.CounterVec

	once sync.Once
)

// Record outcomes.
const (
	OutcomeCollected = "collected"
	OutcomeEmpty     = "empty"
	OutcomeUnusable  = "unusable"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Init registers the collectors with the default registry. It is safe to
// call multiple times; every Observe function calls it.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetch_total",
				Help: "Detail page fetches, labeled by site and status class.",
			},
			[]string{"site", "status_class"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_fetch_duration_seconds",
				Help:    "Detail page fetch latency, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetch_retries_total",
				Help: "Detail page fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		sourcesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_sources_total",
				Help: "Discovered record sources, labeled by strategy and kind.",
			},
			[]string{"strategy", "kind"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_records_total",
				Help: "Processed record sources, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitDelay = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_runs_total",
				Help: "Completed harvest runs, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from rawURL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass buckets an HTTP status; zero means the request never got a
// response.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(rawURL string, status int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, StatusClass(status)).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRetry records a retried fetch.
func ObserveRetry(rawURL string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveSource counts a discovered source.
func ObserveSource(strategy, kind string) {
	Init()
	sourcesTotal.WithLabelValues(strategy, kind).Inc()
}

// ObserveRecord counts a processed source by outcome.
func ObserveRecord(outcome string) {
	Init()
	recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelay.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRun counts a finished run.
func ObserveRun(status string) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
}

// Push sends the default registry to a Prometheus Pushgateway under job.
func Push(ctx context.Context, gatewayURL, job string) error {
	Init()
	err := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
