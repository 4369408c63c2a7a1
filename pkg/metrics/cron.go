package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records metadata for scheduled sweeps.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	released *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of scheduled sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_success",
		Help: "Successful sweep executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_failure",
		Help: "Failed sweep executions.",
	}, []string{"job"})
	released := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_inventory_units_released",
		Help: "Inventory units returned to the pool by sweeps.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, released)
	return &CronJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		released: released,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddReleasedUnits counts inventory units a sweep returned to the pool.
func (c *CronJobMetrics) AddReleasedUnits(job string, units int) {
	if c == nil || c.released == nil || units <= 0 {
		return
	}
	c.released.WithLabelValues(normalizeLabel(job)).Add(float64(units))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
