// Package metrics defines Prometheus metrics for the notification mailer,
// covering template compilation and rendering, composed and skipped
// notifications, delivery sinks, and the SMTP mail queue.
package metrics
