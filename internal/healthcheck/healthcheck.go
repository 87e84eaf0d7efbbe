package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/engagement-relay/internal/metrics"
)

const probeTimeout = 5 * time.Second

type State int

const (
	StateUnknown State = iota
	StateHealthy
	StateUnhealthy
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return metrics.UpstreamHealthy
	case StateUnhealthy:
		return metrics.UpstreamUnhealthy
	default:
		return metrics.UpstreamUnknown
	}
}

// Monitor periodically probes the backend and remembers the last result.
type Monitor struct {
	mutex     sync.Mutex
	state     State
	client    *http.Client
	target    string
	interval  time.Duration
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewMonitor probes target (the backend health URL) every interval.
func NewMonitor(logger *slog.Logger, target string, interval time.Duration, collector *metrics.Collector) *Monitor {
	return &Monitor{
		client:    &http.Client{Timeout: probeTimeout},
		target:    target,
		interval:  interval,
		logger:    logger,
		collector: collector,
	}
}

// Target returns the probed URL.
func (m *Monitor) Target() string {
	return m.target
}

// State returns the result of the most recent probe.
func (m *Monitor) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// Run probes once immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health check stopped",
				slog.String("upstream", m.target))
			return

		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe sends one GET to the target. Only a 200 counts as healthy.
func (m *Monitor) Probe(ctx context.Context) bool {
	healthy := m.check(ctx)
	if ctx.Err() != nil {
		return healthy
	}

	if m.setState(healthy) {
		if healthy {
			m.logger.Info("Upstream is up",
				slog.String("upstream", m.target))
		} else {
			m.logger.Warn("Upstream is down",
				slog.String("upstream", m.target))
		}
		m.collector.Emit(metrics.MetricEvent{
			Type:    metrics.EventUpstreamHealthChanged,
			Healthy: healthy,
		})
	}

	return healthy
}

func (m *Monitor) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.target, nil)
	if err != nil {
		m.logger.Error("Failed to build health probe",
			slog.String("upstream", m.target),
			slog.Any("err", err))
		return false
	}

	res, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("Health probe failed",
			slog.String("upstream", m.target),
			slog.Any("err", err))
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	res.Body.Close()

	return res.StatusCode == http.StatusOK
}

// setState reports whether the state changed.
func (m *Monitor) setState(healthy bool) (changed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	next := StateUnhealthy
	if healthy {
		next = StateHealthy
	}
	if m.state == next {
		return false
	}

	m.state = next
	return true
}
