// Package metrics keeps notification counters both as atomics (reported by
// the Status RPC) and as Prometheus collectors (served on /metrics).
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	shown          int64
	suppressed     int64
	duplicates     int64
	pollFailures   int64
	lookupFailures int64
	lastPoll       int64
)

var (
	promShown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatnotify_notifications_shown_total",
			Help: "Notifications handed to the OS surface",
		},
		[]string{"strategy"},
	)
	promSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatnotify_notifications_suppressed_total",
			Help: "Notifications dropped before display",
		},
		[]string{"reason"},
	)
	promPollFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatnotify_poll_failures_total",
			Help: "Poll ticks whose fetch failed",
		},
	)
	promLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatnotify_lookup_failures_total",
			Help: "Chat participant lookups that failed",
		},
	)
	promPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatnotify_poll_duration_seconds",
			Help:    "Duration of a poll tick including participant lookups",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
	promLastPoll = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatnotify_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last poll tick",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promShown,
		promSuppressed,
		promPollFailures,
		promLookupFailures,
		promPollDuration,
		promLastPoll,
	)
}

// IncShown counts a notification shown by the given strategy.
func IncShown(strategy string) {
	atomic.AddInt64(&shown, 1)
	promShown.WithLabelValues(strategy).Inc()
}

// IncSuppressed counts a notification dropped for reason.
func IncSuppressed(reason string) {
	atomic.AddInt64(&suppressed, 1)
	if reason == "duplicate" {
		atomic.AddInt64(&duplicates, 1)
	}
	promSuppressed.WithLabelValues(reason).Inc()
}

// IncPollFailure counts a failed poll fetch.
func IncPollFailure() {
	atomic.AddInt64(&pollFailures, 1)
	promPollFailures.Inc()
}

// IncLookupFailure counts a failed participant lookup.
func IncLookupFailure() {
	atomic.AddInt64(&lookupFailures, 1)
	promLookupFailures.Inc()
}

// ObservePoll records a completed poll tick.
func ObservePoll(started time.Time, d time.Duration) {
	atomic.StoreInt64(&lastPoll, started.Unix())
	promLastPoll.Set(float64(started.Unix()))
	promPollDuration.Observe(d.Seconds())
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Shown          int64
	Suppressed     int64
	Duplicates     int64
	PollFailures   int64
	LookupFailures int64
	LastPoll       time.Time
}

// Read returns the current counter values.
func Read() Snapshot {
	s := Snapshot{
		Shown:          atomic.LoadInt64(&shown),
		Suppressed:     atomic.LoadInt64(&suppressed),
		Duplicates:     atomic.LoadInt64(&duplicates),
		PollFailures:   atomic.LoadInt64(&pollFailures),
		LookupFailures: atomic.LoadInt64(&lookupFailures),
	}
	if ts := atomic.LoadInt64(&lastPoll); ts > 0 {
		s.LastPoll = time.Unix(ts, 0)
	}
	return s
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
