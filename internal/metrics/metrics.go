package metrics

import (
	"maps"
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the latency window kept per route.
const maxSamples = 1000

// Upstream health states as reported in snapshots.
const (
	UpstreamUnknown   = "unknown"
	UpstreamHealthy   = "healthy"
	UpstreamUnhealthy = "unhealthy"
)

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	inFlight      map[string]int64
	failures      map[string]int64
	latencies     map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	upstreamState string
	upstreamSince time.Time
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                   `json:"total_requests"`
	TotalFailures int64                   `json:"total_failures"`
	Uptime        time.Duration           `json:"uptime"`
	Upstream      UpstreamMetrics         `json:"upstream"`
	Routes        map[string]RouteMetrics `json:"routes"`
}

type UpstreamMetrics struct {
	URL   string    `json:"url"`
	State string    `json:"state"`
	Since time.Time `json:"since,omitzero"`
}

type RouteMetrics struct {
	Requests    int64         `json:"requests"`
	InFlight    int64         `json:"in_flight"`
	Failures    int64         `json:"failures"`
	AvgLatency  time.Duration `json:"avg_latency"`
	P50Latency  time.Duration `json:"p50_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	P99Latency  time.Duration `json:"p99_latency"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		inFlight:      make(map[string]int64),
		failures:      make(map[string]int64),
		latencies:     make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		upstreamState: UpstreamUnknown,
		startTime:     time.Now(),
	}
}

// StartRelay counts a relay attempt on route.
func (m *Metrics) StartRelay(route string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[route]++
	m.inFlight[route]++
}

// CompleteRelay records the outcome of an attempt. A zero status code
// means no upstream response was received.
func (m *Metrics) CompleteRelay(route string, duration time.Duration, statusCode int, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.inFlight[route] > 0 {
		m.inFlight[route]--
	}

	if failed {
		m.failures[route]++
	}

	m.latencies[route] = append(m.latencies[route], duration)
	if len(m.latencies[route]) > maxSamples {
		m.latencies[route] = m.latencies[route][1:]
	}

	if statusCode == 0 {
		return
	}
	if m.statusCodes[route] == nil {
		m.statusCodes[route] = make(map[int]int64)
	}
	m.statusCodes[route][statusCode]++
}

// SetUpstreamHealth records the latest probe result.
func (m *Metrics) SetUpstreamHealth(healthy bool, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	state := UpstreamUnhealthy
	if healthy {
		state = UpstreamHealthy
	}
	if state != m.upstreamState {
		m.upstreamState = state
		m.upstreamSince = at
	}
}

func (m *Metrics) Snapshot(upstreamURL string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime: time.Since(m.startTime),
		Upstream: UpstreamMetrics{
			URL:   upstreamURL,
			State: m.upstreamState,
			Since: m.upstreamSince,
		},
		Routes: make(map[string]RouteMetrics, len(m.requests)),
	}

	for route, requests := range m.requests {
		snap.TotalRequests += requests
		snap.TotalFailures += m.failures[route]

		rm := RouteMetrics{
			Requests:    requests,
			InFlight:    m.inFlight[route],
			Failures:    m.failures[route],
			StatusCodes: maps.Clone(m.statusCodes[route]),
		}
		if rm.StatusCodes == nil {
			rm.StatusCodes = map[int]int64{}
		}

		if samples := m.latencies[route]; len(samples) > 0 {
			sorted := make([]time.Duration, len(samples))
			copy(sorted, samples)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			rm.AvgLatency = average(sorted)
			rm.P50Latency = percentile(sorted, 0.50)
			rm.P95Latency = percentile(sorted, 0.95)
			rm.P99Latency = percentile(sorted, 0.99)
		}

		snap.Routes[route] = rm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
