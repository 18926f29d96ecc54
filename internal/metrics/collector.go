package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transcribot"

// Collector holds every Prometheus metric the bot exports
type Collector struct {
	registry *prometheus.Registry

	jobsTotal          *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	quotaDecisions     *prometheus.CounterVec
	externalCalls      *prometheus.CounterVec
	externalDuration   *prometheus.HistogramVec
	commandsTotal      *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	workerQueueDepth   prometheus.Gauge
	sessionsExpired    prometheus.Counter
	droppedResults     prometheus.Counter
	subscriptionEvents *prometheus.CounterVec
}

// NewCollector registers all metrics on registry. A nil registry gets a
// fresh one with the Go and process collectors.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished jobs by outcome",
			},
			[]string{"status"},
		),

		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a job from submit to result",
				Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		quotaDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_decisions_total",
				Help:      "Admission decisions of the daily quota",
			},
			[]string{"decision"},
		),

		externalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_calls_total",
				Help:      "Calls to conversion, transcription and translation backends",
			},
			[]string{"backend", "status"},
		),

		externalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_call_duration_seconds",
				Help:      "Latency of backend calls",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"backend"},
		),

		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_commands_total",
				Help:      "Telegram commands handled",
			},
			[]string{"command"},
		),

		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Outgoing messages delayed by a rate limiter",
			},
			[]string{"limiter"},
		),

		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Users with a non-idle session",
			},
		),

		workerQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_queue_depth",
				Help:      "Updates waiting for a worker",
			},
		),

		sessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_expired_total",
				Help:      "Sessions dropped by the idle janitor",
			},
		),

		droppedResults: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_results_total",
				Help:      "Job results discarded because the session moved on",
			},
		),

		subscriptionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_events_total",
				Help:      "Subscription changes applied from payment webhooks",
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordJob(status string, d time.Duration) {
	c.jobsTotal.WithLabelValues(status).Inc()
	c.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (c *Collector) RecordQuotaDecision(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	c.quotaDecisions.WithLabelValues(decision).Inc()
}

// ObserveExternalCall satisfies orchestrator.CallObserver
func (c *Collector) ObserveExternalCall(backend string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.externalCalls.WithLabelValues(backend, status).Inc()
	c.externalDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (c *Collector) RecordCommand(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimitedTotal.WithLabelValues(limiter).Inc()
}

func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

func (c *Collector) SetQueueDepth(n int) {
	c.workerQueueDepth.Set(float64(n))
}

func (c *Collector) RecordSessionExpired() {
	c.sessionsExpired.Inc()
}

func (c *Collector) RecordDroppedResult() {
	c.droppedResults.Inc()
}

func (c *Collector) RecordSubscriptionEvent(operation string) {
	c.subscriptionEvents.WithLabelValues(operation).Inc()
}
