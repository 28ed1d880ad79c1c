package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propgate_evaluations_total",
		Help: "Total rule evaluations performed, by overall risk level",
	}, []string{"risk_level"})

	RuleStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propgate_rule_status_total",
		Help: "Per-rule status outcomes across evaluations",
	}, []string{"rule", "status"})

	EvaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propgate_evaluation_latency_seconds",
		Help:    "Snapshot ingest-to-result latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"firm"})

	GroupEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propgate_group_evaluations_total",
		Help: "Group weakest-account evaluations, by overall status",
	}, []string{"status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
