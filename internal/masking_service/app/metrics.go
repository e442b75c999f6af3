package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maskRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "call_masking",
			Name:      "mask_requests_total",
			Help:      "Mask requests by result.",
		},
		[]string{"result"}, // masked, invalid, unauthorized, exhausted, error
	)
	progressNotificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "call_masking",
			Name:      "progress_notifications_total",
			Help:      "Call-progress notifications by result. Failures are dropped.",
		},
		[]string{"result"}, // sent, failed
	)
)
