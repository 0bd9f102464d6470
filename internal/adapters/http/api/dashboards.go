package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/pulseboard/pkg/logger"
)

// DashboardsHandler serves dashboard summaries and series.
type DashboardsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewDashboardsHandler creates a new dashboards handler.
func NewDashboardsHandler(deps Dependencies, log logger.Logger) *DashboardsHandler {
	return &DashboardsHandler{deps: deps, logger: log}
}

type dashboardsResponse struct {
	Dashboards any `json:"dashboards"`
}

// HandleList handles GET /api/dashboards.
// With ?series=true every dashboard carries its series.
func (h *DashboardsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	resp := dashboardsResponse{Dashboards: h.deps.Summaries()}
	if r.URL.Query().Get("series") == "true" {
		resp.Dashboards = h.deps.Views()
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error(r.Context(), "dashboard list encoding failed", logger.Error(err))
	}
}

// HandleGet handles GET /api/dashboards/{name}.
func (h *DashboardsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/dashboards/"), "/")
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing dashboard name", ErrBadRequest))
		return
	}
	view, ok := h.deps.DashboardView(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", ErrDashboardNotFound, name))
		return
	}
	if err := writeJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error(r.Context(), "dashboard encoding failed", logger.String("dashboard", name), logger.Error(err))
	}
}
