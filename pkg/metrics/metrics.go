package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Template metrics
	TemplateCompiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_template_compiles_total",
		Help: "Total number of template compilations published into the template cache",
	}, []string{"template"})
	TemplateRenderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailer_template_render_seconds",
		Help:    "Time spent rendering a template, including a first-time compile",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"template"})

	// Composer metrics
	NotificationsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_skipped_total",
		Help: "Total number of notifications skipped because required input was missing",
	}, []string{"template", "reason"})
	MessagesQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_messages_queued_total",
		Help: "Total number of rendered messages accepted by a delivery sink",
	}, []string{"template"})
	// Counter is the backing vector for named counters submitted alongside each message
	// (e.g. "mailer.event-notice").
	Counter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_counter_total",
		Help: "Named counters incremented for every submitted message",
	}, []string{"name"})

	// Sink metrics
	SinkDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_queue_dropped_total",
		Help: "Total number of messages a delivery sink refused",
	}, []string{"sink"})
	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_sink_errors_total",
		Help: "Total number of delivery sink write errors by error type",
	}, []string{"sink", "error_type"})
	SinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailer_sink_write_seconds",
		Help:    "Latency of delivery sink writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})

	// Mail queue metrics
	MailSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_sent_total",
		Help: "Total number of queued mails sent successfully",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_send_failures_total",
		Help: "Total number of queued mails that failed after all retries",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_retry_scheduled_total",
		Help: "Total number of mail send retries scheduled",
	}, []string{"host"})
	MailQueueLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mailer_queue_length",
		Help: "Number of mails waiting in the in-process queue",
	}, []string{"host"})

	// HTTP metrics
	HTTPRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailer_http_rate_limited_total",
		Help: "Total number of ops server requests rejected by the rate limiter",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(TemplateCompiles)
	prometheus.MustRegister(TemplateRenderDuration)
	prometheus.MustRegister(NotificationsSkipped)
	prometheus.MustRegister(MessagesQueued)
	prometheus.MustRegister(Counter)
	prometheus.MustRegister(SinkDropped)
	prometheus.MustRegister(SinkErrors)
	prometheus.MustRegister(SinkLatency)
	prometheus.MustRegister(MailSent)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailQueueLength)
	prometheus.MustRegister(HTTPRateLimited)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
