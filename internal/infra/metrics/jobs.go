package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsProcessedTotal, jobDurationSeconds, jobsInFlight, jobRateLimitWaits, jobsRequeuedTotal)
}

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Jobs handled by the worker pool, by queue and status.",
		},
		[]string{"queue", "status"}, // completed | retried | failed
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Handler run time per queue.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	jobsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "Jobs currently running per queue.",
		},
		[]string{"queue"},
	)

	jobRateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_rate_limit_waits_total",
			Help: "Times a claimed job waited for its queue's rate window.",
		},
		[]string{"queue"},
	)

	jobsRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_requeued_stale_total",
			Help: "Processing jobs returned to pending after their lease expired.",
		},
	)
)

func IncJob(queue, status string) {
	jobsProcessedTotal.WithLabelValues(norm(queue), norm(status)).Inc()
}

func ObserveJobDuration(queue string, d time.Duration) {
	jobDurationSeconds.WithLabelValues(norm(queue)).Observe(d.Seconds())
}

func JobStarted(queue string)  { jobsInFlight.WithLabelValues(norm(queue)).Inc() }
func JobFinished(queue string) { jobsInFlight.WithLabelValues(norm(queue)).Dec() }

func IncRateLimitWait(queue string) {
	jobRateLimitWaits.WithLabelValues(norm(queue)).Inc()
}

func AddRequeued(n int64) {
	jobsRequeuedTotal.Add(float64(n))
}
