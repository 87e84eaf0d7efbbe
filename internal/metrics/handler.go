package metrics

import (
	"net/http"

	"github.com/angeloszaimis/engagement-relay/internal/envelope"
)

// Handler serves the current snapshot as JSON.
func (c *Collector) Handler(upstreamURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = envelope.JSON(w, http.StatusOK, c.Snapshot(upstreamURL))
	}
}
