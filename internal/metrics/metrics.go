// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Assignments counts take-charge attempts by outcome
	// (ok, conflict, busy, aborted, error).
	Assignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "assignments_total",
		Help:      "Conversation take-charge attempts by outcome.",
	}, []string{"outcome"})

	// Releases counts release calls, split by whether a session was closed.
	Releases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "releases_total",
		Help:      "Conversation releases by outcome.",
	}, []string{"outcome"})

	// Messages counts routing decisions by sender role and outcome
	// (delivered, denied, delivery_failed, error).
	Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "messages_total",
		Help:      "Routed chat messages by sender role and outcome.",
	}, []string{"role", "outcome"})

	// AssignWait observes how long take-charge waited for the administrator lock.
	AssignWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "switchboard",
		Name:      "assign_lock_wait_seconds",
		Help:      "Time spent waiting for the administrator lock.",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	// Subscribers tracks live realtime subscribers across all channels.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Name:      "realtime_subscribers",
		Help:      "Connected websocket and SSE subscribers.",
	})
)
