package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxes_reconcile_total",
		Help: "Reconcile attempts partitioned by outcome.",
	},
		[]string{"outcome"},
	)

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxes_reconcile_duration_seconds",
		Help:    "Wall time of a reconcile transaction, commit or rollback included.",
		Buckets: prometheus.DefBuckets,
	})

	BoxesReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxes_reserved_total",
		Help: "Boxes newly reserved by committed reconciles.",
	})

	BoxesReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxes_released_total",
		Help: "Boxes released by committed reconciles, cancellations and drops.",
	})

	ContentLinesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxes_content_lines_removed_total",
		Help: "Content lines stripped out of reserved boxes.",
	})

	StaleRemovalsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxes_stale_removals_skipped_total",
		Help: "Content removal entries skipped because the caller did not hold the box.",
	})

	EventPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxes_event_publish_errors_total",
		Help: "Reservation events that could not be delivered to the broker.",
	})
)

// Reconcile outcome labels.
const (
	OutcomeCommitted   = "committed"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
)
