package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	simulatedCallsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "call_simulator",
			Name:      "calls_total",
			Help:      "Simulated calls by final outcome.",
		},
		[]string{"outcome"}, // completed, failed, cancelled, dropped, invalid
	)
	statesPublishedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "call_simulator",
			Name:      "states_published_total",
			Help:      "Call-progress states published.",
		},
		[]string{"state", "outcome"},
	)
	inflightGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "call_simulator",
			Name:      "inflight_calls",
			Help:      "Simulated calls currently walking their states.",
		},
	)
)
