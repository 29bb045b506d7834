// Package metrics exposes Prometheus instruments for the simulation.
//
// Instruments register on the default registry at package init; the entry
// point serves them with promhttp when metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "shopfloor"

	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "state_entries_total",
			Help:      "Total number of state entries by scenario and state",
		},
		[]string{"scenario", "state"},
	)

	publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "publishes_total",
			Help:      "Total number of snapshot publishes by topic kind and result",
		},
		[]string{"kind", "result"},
	)

	suppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "unchanged_total",
			Help:      "Total number of synchronizations skipped because nothing changed",
		},
	)

	queuedJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "queued_jobs",
			Help:      "Number of Jobs in the queue",
		},
		[]string{"scenario"},
	)

	controlMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "control_messages_total",
			Help:      "Total number of inbound control messages by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Topic kinds for RecordPublish.
const (
	KindHead   = "head"
	KindAtomic = "atomic"
)

func RecordStateEntry(scenario, state string) {
	stateTransitions.WithLabelValues(scenario, state).Inc()
}

func RecordPublish(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishes.WithLabelValues(kind, result).Inc()
}

func RecordUnchanged() {
	suppressed.Inc()
}

func RecordQueuedJobs(scenario string, n int) {
	queuedJobs.WithLabelValues(scenario).Set(float64(n))
}

func RecordControlMessage(kind string, accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "dropped"
	}
	controlMessages.WithLabelValues(kind, outcome).Inc()
}
