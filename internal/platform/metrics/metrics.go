package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "route_results_operation_duration_seconds",
			Help:    "Duration of timed operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	ResultsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_results_applied_total",
			Help: "Solver results applied to persisted routes",
		},
		[]string{"mode", "outcome"}, // outcome: committed, rolled_back, not_good
	)

	PointsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_results_points_reconciled_total",
			Help: "Points produced by reconciliation, by whether an existing row was reused",
		},
		[]string{"mode", "identity"}, // identity: reused, created
	)

	OrderStatusChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "route_results_order_status_changes_total",
			Help: "Orders transitioned to assigned by route reconciliation",
		},
	)

	ThrottlePauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "route_results_throttle_pauses_total",
			Help: "Pauses taken to cap the order status change rate",
		},
	)

	Compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_results_compensations_total",
			Help: "Compensation runs after a failed save",
		},
		[]string{"outcome"}, // outcome: ok, failed
	)

	PushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_results_push_messages_total",
			Help: "Push messages handed to the dispatcher",
		},
		[]string{"type", "outcome"},
	)

	EngineRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "route_results_engine_runs_in_flight",
			Help: "Engine runs currently being applied",
		},
	)
)
