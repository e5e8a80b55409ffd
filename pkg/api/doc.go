// Package api implements the ops HTTP server (Gin-based) of the mailer:
// health and readiness probes, Prometheus metrics, build info and rendered
// previews of every notification kind.
package api
