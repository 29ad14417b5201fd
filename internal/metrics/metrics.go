// Package metrics exposes launcher activity as Prometheus collectors.
//
// All recording methods are safe on a nil *Metrics, which lets components
// run without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/mention-launcher/internal/domain"
)

const namespace = "launcher"

// Mention results.
const (
	ResultLaunched  = "launched"
	ResultFailed    = "failed"
	ResultUnparsed  = "unparsed"
	ResultDuplicate = "duplicate"
)

// Reply kinds.
const (
	ReplyHelp       = "help"
	ReplyInProgress = "in_progress"
	ReplySuccess    = "success"
	ReplyFailure    = "failure"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	mentions     *prometheus.CounterVec
	replies      *prometheus.CounterVec
	launches     *prometheus.CounterVec
	pollErrors   prometheus.Counter
	seenIDs      prometheus.Gauge
	pollDuration prometheus.Histogram
}

// New creates and registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mentions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_total",
			Help:      "Mentions handled by the monitor, by result.",
		}, []string{"result"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies posted to mention authors, by kind and status.",
		}, []string{"kind", "status"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Token launch attempts, by source and status.",
		}, []string{"source", "status"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Poll iterations that failed and entered backoff.",
		}),
		seenIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_ids",
			Help:      "Mention ids held in the dedup set.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll iteration including mention processing.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	m.registry.MustRegister(
		m.mentions,
		m.replies,
		m.launches,
		m.pollErrors,
		m.seenIDs,
		m.pollDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MentionHandled counts one mention by result.
func (m *Metrics) MentionHandled(result string) {
	if m == nil {
		return
	}
	m.mentions.WithLabelValues(result).Inc()
}

// ReplyPosted counts one reply attempt.
func (m *Metrics) ReplyPosted(kind string, err error) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind, status(err == nil)).Inc()
}

// LaunchCompleted counts one finished launch attempt.
func (m *Metrics) LaunchCompleted(source domain.LaunchSource, success bool) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(string(source), status(success)).Inc()
}

// PollFailed counts a failed poll iteration.
func (m *Metrics) PollFailed() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

// SetSeen records the dedup set size.
func (m *Metrics) SetSeen(n int) {
	if m == nil {
		return
	}
	m.seenIDs.Set(float64(n))
}

// ObservePoll records the duration of one poll iteration.
func (m *Metrics) ObservePoll(d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
