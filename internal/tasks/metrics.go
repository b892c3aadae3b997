package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	// tasksTotal counts finished tasks by queue and terminal status.
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_total",
			Help: "Total number of finished pipeline tasks.",
		},
		[]string{"queue", "status"},
	)

	// taskDuration records task execution time in seconds by queue,
	// including retries.
	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_task_duration_seconds",
			Help:    "Execution time of pipeline tasks in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// tasksInflight gauges tasks currently executing, by queue.
	tasksInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_tasks_inflight",
			Help: "Number of pipeline tasks currently executing.",
		},
		[]string{"queue"},
	)

	// queueDepth gauges tasks waiting in each queue's buffer.
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Number of pipeline tasks waiting in queue.",
		},
		[]string{"queue"},
	)

	// taskRetries counts retry attempts by queue.
	taskRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_task_retries_total",
			Help: "Total number of pipeline task retry attempts.",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal, taskDuration, tasksInflight, queueDepth, taskRetries)
}
