package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClashRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royale_clash_requests_total",
		Help: "Clash Royale API requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	BattlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royale_battles_ingested_total",
		Help: "Battles appended to account logs, by mode category.",
	}, []string{"category"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royale_notifications_sent_total",
		Help: "Notifications delivered to the sink, by kind.",
	}, []string{"kind"})

	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "royale_poll_cycles_total",
		Help: "Completed polling cycles across all monitored accounts.",
	})

	PollStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royale_poll_step_failures_total",
		Help: "Per-account polling step failures, by step.",
	}, []string{"step"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "royale_poll_cycle_duration_seconds",
		Help: "Wall time of one full polling cycle across all accounts.",
		// cycles include the inter-account and summary-batching delays,
		// so the upper buckets reach into minutes
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
