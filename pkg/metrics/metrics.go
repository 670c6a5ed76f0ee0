package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the scheduler's Prometheus instruments. A nil
// *Collector is valid and records nothing, so components can run without
// metrics wired up (tests, the CLI).
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted    prometheus.Counter
	jobsDispatched   prometheus.Counter
	jobsCompleted    prometheus.Counter
	jobsFailed       prometheus.Counter
	jobsRetried      prometheus.Counter
	jobsDeadLettered prometheus.Counter

	queueDepth  prometheus.Gauge
	busyWorkers prometheus.Gauge
	policyInfo  *prometheus.GaugeVec

	executionSeconds prometheus.Histogram
}

// NewCollector builds and registers all instruments on a fresh registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscheduler_jobs_submitted_total",
			Help: "Jobs accepted by the API",
		}),
		jobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscheduler_jobs_dispatched_total",
			Help: "Jobs pushed to the ready queue by the engine",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscheduler_jobs_completed_total",
			Help: "Jobs that finished successfully",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscheduler_jobs_failed_total",
			Help: "Jobs that failed permanently",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscheduler_jobs_retried_total",
			Help: "Job retry attempts",
		}),
		jobsDeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscheduler_jobs_dead_lettered_total",
			Help: "Jobs pushed to the dead letter queue",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobscheduler_ready_queue_depth",
			Help: "Current length of the ready queue",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobscheduler_busy_workers",
			Help: "Workers currently executing a job",
		}),
		policyInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobscheduler_active_policy",
			Help: "Active scheduling policy (1 for the active one)",
		}, []string{"policy"}),
		executionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobscheduler_job_execution_seconds",
			Help:    "Job handler execution time",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	c.registry.MustRegister(
		c.jobsSubmitted, c.jobsDispatched, c.jobsCompleted, c.jobsFailed,
		c.jobsRetried, c.jobsDeadLettered, c.queueDepth, c.busyWorkers,
		c.policyInfo, c.executionSeconds,
	)
	return c
}

// Handler serves the /metrics endpoint for this collector's registry
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) JobSubmitted() {
	if c == nil {
		return
	}
	c.jobsSubmitted.Inc()
}

func (c *Collector) JobDispatched() {
	if c == nil {
		return
	}
	c.jobsDispatched.Inc()
}

func (c *Collector) JobCompleted() {
	if c == nil {
		return
	}
	c.jobsCompleted.Inc()
}

func (c *Collector) JobFailed() {
	if c == nil {
		return
	}
	c.jobsFailed.Inc()
}

func (c *Collector) JobRetried() {
	if c == nil {
		return
	}
	c.jobsRetried.Inc()
}

func (c *Collector) JobDeadLettered() {
	if c == nil {
		return
	}
	c.jobsDeadLettered.Inc()
}

func (c *Collector) SetQueueDepth(depth float64) {
	if c == nil {
		return
	}
	c.queueDepth.Set(depth)
}

func (c *Collector) SetActivePolicy(name string) {
	if c == nil {
		return
	}
	c.policyInfo.Reset()
	c.policyInfo.WithLabelValues(name).Set(1)
}

func (c *Collector) WorkerBusy() {
	if c == nil {
		return
	}
	c.busyWorkers.Inc()
}

func (c *Collector) WorkerIdle() {
	if c == nil {
		return
	}
	c.busyWorkers.Dec()
}

func (c *Collector) ObserveExecution(seconds float64) {
	if c == nil {
		return
	}
	c.executionSeconds.Observe(seconds)
}
