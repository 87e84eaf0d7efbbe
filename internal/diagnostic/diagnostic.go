// Package diagnostic serves the /api/test-simple liveness and echo endpoint.
package diagnostic

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/engagement-relay/internal/envelope"
)

const (
	// Path is the route both handlers are mounted on.
	Path = "/api/test-simple"

	// GetMessage and PostMessage are the fixed success messages.
	GetMessage  = "Test endpoint is working"
	PostMessage = "POST request received"

	// InvalidJSONMessage is returned with 400 for bodies that are not JSON.
	InvalidJSONMessage = "Invalid JSON"

	// TimestampLayout is ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// maxBodyBytes caps the echoed payload.
const maxBodyBytes = 1 << 20

type statusResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type echoResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Received  json.RawMessage `json:"received"`
	Timestamp string          `json:"timestamp"`
}

// Handler serves GET and POST on Path.
type Handler struct {
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Handler stamping responses with now. A nil now uses time.Now.
func New(logger *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{logger: logger, now: now}
}

// Get reports that the endpoint is up.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_ = envelope.JSON(w, http.StatusOK, statusResponse{
		Success:   true,
		Message:   GetMessage,
		Timestamp: h.timestamp(),
	})
}

// Post echoes the JSON body back under "received".
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		h.logger.Warn("Rejected diagnostic payload",
			slog.Int("bytes", len(body)),
			slog.Any("err", err))
		_ = envelope.Fail(w, http.StatusBadRequest, InvalidJSONMessage)
		return
	}

	_ = envelope.JSON(w, http.StatusOK, echoResponse{
		Success:   true,
		Message:   PostMessage,
		Received:  json.RawMessage(body),
		Timestamp: h.timestamp(),
	})
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(TimestampLayout)
}
