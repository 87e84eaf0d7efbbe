// Package healthcheck watches the backend and answers liveness and
// readiness probes. Monitor polls the backend health URL on an interval
// and publishes state changes to the metrics collector; Liveness and
// Readiness serve /healthz and /readyz.
package healthcheck
