// Package metrics defines the Prometheus collectors for sweeps.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "careerwatch"

// Outcome labels for SweepsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Failure reasons for EntriesFailed.
const (
	ReasonResolution  = "resolution"
	ReasonFetch       = "fetch"
	ReasonPersistence = "persistence"
	ReasonTimeout     = "timeout"
)

// Metrics holds the collectors written by the sweeper.
type Metrics struct {
	SweepsTotal       *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	LastSweepTime     prometheus.Gauge
	EntriesChecked    prometheus.Counter
	EntriesFailed     *prometheus.CounterVec
	PostingsFetched   *prometheus.CounterVec
	PostingsMalformed *prometheus.CounterVec
	PostingsNew       *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SweepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Sweeps by outcome",
		}, []string{"outcome"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of completed sweeps",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		LastSweepTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished",
		}),
		EntriesChecked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_checked_total",
			Help:      "Watch entries processed",
		}),
		EntriesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_failed_total",
			Help:      "Watch entries that failed, by reason",
		}, []string{"reason"}),
		PostingsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_fetched_total",
			Help:      "Postings returned by adapters",
		}, []string{"source"}),
		PostingsMalformed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_malformed_total",
			Help:      "Postings skipped as malformed",
		}, []string{"source"}),
		PostingsNew: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_new_total",
			Help:      "Postings committed to the seen store for the first time",
		}, []string{"source"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by result",
		}, []string{"result"}),
	}
}
