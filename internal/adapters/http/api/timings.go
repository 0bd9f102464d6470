package api

import (
	"net/http"

	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
)

// TimingsHandler exposes per-handler timers in the snapshot format the
// dashboards poll:
//
//	{"<handler>": {"timer": {"duration": {"mean": ms}, "rate": {"mean": per_sec}}}}
type TimingsHandler struct {
	snapshot func() (map[string]metrics.TimerReading, error)
	logger   logger.Logger
}

// NewTimingsHandler creates a handler over the process-wide handler timers.
func NewTimingsHandler(log logger.Logger) *TimingsHandler {
	return &TimingsHandler{snapshot: metrics.HandlerTimings, logger: log}
}

// HandleTimings handles GET /metrics.json.
func (h *TimingsHandler) HandleTimings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	readings, err := h.snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	if err := writeJSON(w, http.StatusOK, readings); err != nil {
		h.logger.Error(r.Context(), "timings encoding failed", logger.Error(err))
	}
}
