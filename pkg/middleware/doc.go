// Package middleware provides HTTP middleware for treeline servers:
// Prometheus request metrics and OpenTelemetry request tracing. Both
// are standard func(http.Handler) http.Handler wrappers and compose
// with chi or plain net/http.
package middleware
