package healthcheck

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/engagement-relay/internal/database"
	"github.com/angeloszaimis/engagement-relay/internal/envelope"
)

const pingTimeout = 2 * time.Second

// Database states reported by /readyz.
const (
	DatabaseOK       = "ok"
	DatabaseError    = "error"
	DatabaseDisabled = "disabled"
)

type livenessResponse struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Upstream string `json:"upstream"`
}

// Liveness always answers 200 while the process serves requests.
func Liveness(w http.ResponseWriter, r *http.Request) {
	_ = envelope.JSON(w, http.StatusOK, livenessResponse{Status: "ok"})
}

// Readiness reports the pool and upstream state. Only a failing pool
// makes the service unready; the upstream state is informational.
type Readiness struct {
	logger  *slog.Logger
	db      database.Pinger
	monitor *Monitor
}

// NewReadiness accepts a nil db (no pool configured) and a nil monitor
// (upstream probing disabled).
func NewReadiness(logger *slog.Logger, db database.Pinger, monitor *Monitor) *Readiness {
	return &Readiness{logger: logger, db: db, monitor: monitor}
}

func (rd *Readiness) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := readinessResponse{
		Status:   "ready",
		Database: DatabaseDisabled,
		Upstream: StateUnknown.String(),
	}
	status := http.StatusOK

	if rd.db != nil {
		if err := database.Ping(r.Context(), rd.db, pingTimeout); err != nil {
			rd.logger.Warn("Database ping failed", slog.Any("err", err))
			resp.Database = DatabaseError
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = DatabaseOK
		}
	}

	if rd.monitor != nil {
		resp.Upstream = rd.monitor.State().String()
	}

	_ = envelope.JSON(w, status, resp)
}
