// Package metrics collects relay statistics off the request path.
//
// Handlers and the upstream health monitor emit events into a buffered
// channel; a single goroutine folds them into per-route counters:
//   - relay attempts, in-flight calls and failures
//   - upstream status code distribution
//   - latency average and percentiles (P50, P95, P99) over the last 1000 calls
//   - the last known upstream health state
//
// Emit never blocks. When the buffer is full the event is dropped.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventRelayCompleted,
//		Route:      "/api/stats/refresh",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot("https://threads-bot-dashboard-3.onrender.com")
//
// On context cancellation the collector drains queued events before exiting.
package metrics
