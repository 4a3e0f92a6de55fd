package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "epochwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "epochwatch",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Source polling metrics ─────────────────────────────────────────────

var (
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "poll",
		Name:      "total",
		Help:      "Total number of fetch attempts per source.",
	}, []string{"source", "status"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "epochwatch",
		Subsystem: "poll",
		Name:      "duration_seconds",
		Help:      "Duration of fetch per source in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"source"})

	PollLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "epochwatch",
		Subsystem: "poll",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful fetch per source.",
	}, []string{"source"})
)

// ── Epoch state machine metrics ────────────────────────────────────────

var (
	EpochCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "epochwatch",
		Subsystem: "epoch",
		Name:      "current",
		Help:      "Most recently read epoch counter.",
	})

	EpochTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "epoch",
		Name:      "transitions_total",
		Help:      "Total epoch increments detected.",
	})

	EpochReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "epoch",
		Name:      "read_failures_total",
		Help:      "Total failed epoch reads.",
	})

	EpochAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "epoch",
		Name:      "anomalies_total",
		Help:      "Total backwards epoch readings observed.",
	})
)

// ── Report delivery metrics ────────────────────────────────────────────

var (
	PublishSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "publish",
		Name:      "sent_total",
		Help:      "Total epoch reports successfully delivered.",
	})

	PublishFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "publish",
		Name:      "failed_total",
		Help:      "Total epoch report delivery failures.",
	})

	PublishDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "epochwatch",
		Subsystem: "publish",
		Name:      "deduplicated_total",
		Help:      "Total epoch reports suppressed by the announce guard.",
	})
)

// ── Snapshot / business metrics ────────────────────────────────────────

var (
	MetricValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "epochwatch",
		Subsystem: "snapshot",
		Name:      "metric_value",
		Help:      "Current canonical value of a tracked metric.",
	}, []string{"metric"})

	SnapshotUnknownFields = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "epochwatch",
		Subsystem: "snapshot",
		Name:      "unknown_fields",
		Help:      "Number of canonical fields unresolved in the latest snapshot.",
	})
)

// ── Ledger metrics ─────────────────────────────────────────────────────

var LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "epochwatch",
	Subsystem: "ledger",
	Name:      "writes_total",
	Help:      "Total ledger write attempts by outcome.",
}, []string{"outcome"})
