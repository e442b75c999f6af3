package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	allocationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxy_pool",
			Name:      "allocations_total",
			Help:      "Total number of allocation requests by result.",
		},
		[]string{"result"}, // claimed, synthesized, exhausted, error
	)
	allocationDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "proxy_pool",
			Name:      "allocation_duration_seconds",
			Help:      "Duration of proxy number allocation.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	claimRetriesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proxy_pool",
			Name:      "claim_retries_total",
			Help:      "Claims lost to a concurrent allocation and retried.",
		},
	)
	releasesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proxy_pool",
			Name:      "releases_total",
			Help:      "Total number of explicit releases that changed a row.",
		},
	)
	reapedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proxy_pool",
			Name:      "reaped_total",
			Help:      "Total number of expired assignments returned to the pool.",
		},
	)
	poolSizeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "proxy_pool",
			Name:      "numbers",
			Help:      "Proxy numbers in the pool as of the last stats read.",
		},
		[]string{"state"}, // total, available
	)
)
