package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/engagement-relay/internal/envelope"
	"github.com/angeloszaimis/engagement-relay/internal/metrics"
)

// RefreshPath is both the inbound route and the upstream path.
const RefreshPath = "/api/stats/refresh"

// RefreshFailedMessage is returned for every failed refresh.
const RefreshFailedMessage = "Failed to refresh engagement data"

// maxUpstreamBody caps how much of an upstream response is read.
const maxUpstreamBody = 10 << 20

// ErrInvalidJSON reports an upstream 2xx response whose body is not JSON.
var ErrInvalidJSON = errors.New("upstream returned invalid JSON")

// StatusError reports an upstream response outside the 2xx range.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Relay forwards requests to the backend and relays its JSON back.
type Relay struct {
	logger    *slog.Logger
	client    *http.Client
	baseURL   string
	collector *metrics.Collector
}

// New creates a Relay targeting baseURL. A nil client means
// http.DefaultClient; a nil collector disables metrics.
func New(logger *slog.Logger, client *http.Client, baseURL string, collector *metrics.Collector) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{
		logger:    logger,
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		collector: collector,
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (rl *Relay) BaseURL() string {
	return rl.baseURL
}

// URL joins the base URL and path.
func (rl *Relay) URL(path string) string {
	return rl.baseURL + "/" + strings.TrimLeft(path, "/")
}

// RefreshStats relays POST /api/stats/refresh. The inbound body is ignored.
func (rl *Relay) RefreshStats(w http.ResponseWriter, r *http.Request) {
	body, err := rl.Forward(r.Context(), http.MethodPost, RefreshPath)
	if err != nil {
		rl.logger.Error("Failed to refresh engagement data",
			slog.String("upstream", rl.URL(RefreshPath)),
			slog.Any("err", err))
		_ = envelope.Fail(w, http.StatusInternalServerError, RefreshFailedMessage)
		return
	}

	_ = envelope.Raw(w, http.StatusOK, body)
}

// Forward issues one bodiless JSON request to path on the backend and
// returns the response body. Non-2xx statuses yield *StatusError, a
// body that is not JSON yields ErrInvalidJSON. There are no retries.
func (rl *Relay) Forward(ctx context.Context, method, path string) ([]byte, error) {
	target := rl.URL(path)

	rl.collector.Emit(metrics.MetricEvent{
		Type:  metrics.EventRelayStarted,
		Route: path,
	})

	start := time.Now()
	statusCode, body, err := rl.do(ctx, method, target)
	duration := time.Since(start)

	rl.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventRelayCompleted,
		Route:      path,
		Duration:   duration,
		StatusCode: statusCode,
		Failed:     err != nil,
	})

	if err != nil {
		return nil, err
	}

	rl.logger.Debug("Relayed request",
		slog.String("method", method),
		slog.String("upstream", target),
		slog.Int("status", statusCode),
		slog.Duration("duration", duration))

	return body, nil
}

func (rl *Relay) do(ctx context.Context, method, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := rl.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUpstreamBody))
		return resp.StatusCode, nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read upstream body: %w", err)
	}
	if len(body) > maxUpstreamBody {
		return resp.StatusCode, nil, fmt.Errorf("upstream body exceeds %d bytes: %w", maxUpstreamBody, ErrInvalidJSON)
	}

	if !json.Valid(body) {
		return resp.StatusCode, nil, ErrInvalidJSON
	}

	return resp.StatusCode, body, nil
}
