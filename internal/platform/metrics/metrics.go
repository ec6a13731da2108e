// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications counts verify calls.
	// Labels: outcome (correct, incorrect, rejected, error)
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "code_dojo",
		Subsystem: "verification",
		Name:      "total",
		Help:      "Exercise verifications by outcome",
	}, []string{"outcome"})

	// JudgeRequests counts calls to the external judge.
	// Labels: status (judge status description, or transport_error)
	JudgeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "code_dojo",
		Subsystem: "judge",
		Name:      "requests_total",
		Help:      "Judge submissions by resulting status",
	}, []string{"status"})

	JudgeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "code_dojo",
		Subsystem: "judge",
		Name:      "latency_seconds",
		Help:      "Round trip time of synchronous judge submissions",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 30},
	})

	// BadgesAwarded counts newly created user badges.
	// Labels: badge (badge code)
	BadgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "code_dojo",
		Subsystem: "reward",
		Name:      "badges_awarded_total",
		Help:      "Badges awarded for the first time",
	}, []string{"badge"})

	XPAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "code_dojo",
		Subsystem: "reward",
		Name:      "xp_awarded_total",
		Help:      "Experience points granted by correct submissions",
	})

	// ProgressEvents counts leaderboard events handled by the worker.
	// Labels: result (applied, requeued, dropped)
	ProgressEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "code_dojo",
		Subsystem: "worker",
		Name:      "progress_events_total",
		Help:      "Progress events consumed by the leaderboard worker",
	}, []string{"result"})
)
