package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	mediaOrchestrator = "media_orchestrator"

	jobTransitionsTotal = "job_transitions_total"
	jobsPendingCount    = "jobs_pending_count"

	// Labels
	jobTypeLabel  = "type"
	jobStateLabel = "state"
)

var jobTransitionLabels = []string{
	jobTypeLabel,
	jobStateLabel,
}

var jobTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mediaOrchestrator,
		Name:      jobTransitionsTotal,
		Help:      "number of job state transitions partitioned by job type and resulting state",
	},
	jobTransitionLabels,
)

var jobsPendingCountMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: mediaOrchestrator,
		Name:      jobsPendingCount,
		Help:      "number of jobs currently waiting to be claimed by a runner",
	},
	[]string{jobTypeLabel},
)

func IncreaseJobTransitionMetric(jobType, state string) {
	labels := prometheus.Labels{
		jobTypeLabel:  jobType,
		jobStateLabel: state,
	}
	jobTransitionsTotalMetric.With(labels).Inc()
}

func UpdatePendingJobsMetric(jobType string, count int) {
	labels := prometheus.Labels{
		jobTypeLabel: jobType,
	}
	jobsPendingCountMetric.With(labels).Set(float64(count))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobTransitionsTotalMetric)
	prometheus.MustRegister(jobsPendingCountMetric)
}
