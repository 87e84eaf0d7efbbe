package metrics

import (
	"context"
	"log/slog"
	"time"
)

// EventType names what a MetricEvent reports.
type EventType string

const (
	EventRelayStarted          EventType = "relay_started"
	EventRelayCompleted        EventType = "relay_completed"
	EventUpstreamHealthChanged EventType = "upstream_health_changed"
)

// MetricEvent is one observation sent to the collector. Route, Duration,
// StatusCode and Failed describe relay events; Healthy describes
// upstream_health_changed. A zero Timestamp is filled in by Emit.
type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	Duration   time.Duration
	StatusCode int
	Failed     bool
	Healthy    bool
}

// Collector owns the metrics and is the only goroutine that mutates them.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

// NewCollector buffers up to bufferSize events. Call Start to begin folding them.
func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit queues an event without blocking. Events are dropped when the
// buffer is full. A nil collector ignores everything.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

// Start runs the collector until ctx is done, then drains queued events.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRelayStarted:
		c.metrics.StartRelay(event.Route)

	case EventRelayCompleted:
		c.metrics.CompleteRelay(event.Route, event.Duration, event.StatusCode, event.Failed)

	case EventUpstreamHealthChanged:
		c.metrics.SetUpstreamHealth(event.Healthy, event.Timestamp)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot(upstreamURL string) Snapshot {
	return c.metrics.Snapshot(upstreamURL)
}
