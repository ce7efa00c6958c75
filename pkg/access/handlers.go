package access

import (
	"encoding/json"
	"net/http"

	"github.com/formgrid/formgrid/pkg/httputil"
	"github.com/formgrid/formgrid/pkg/observability"
)

// CheckHandler exposes the engine as a decision endpoint for internal
// callers (the CRUD layer and other services enforce with the returned
// decision; this handler never enforces anything itself)
type CheckHandler struct {
	engine *Engine
	logger *observability.Logger
}

// NewCheckHandler creates the decision endpoint handler
func NewCheckHandler(engine *Engine, logger *observability.Logger) *CheckHandler {
	return &CheckHandler{engine: engine, logger: logger}
}

// ServeHTTP handles POST /access/check
func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Method == "" {
		httputil.WriteBadRequest(w, "method is required")
		return
	}

	decision, err := h.engine.HasAccess(r.Context(), &req)
	if err != nil {
		h.logger.WithError(err).WithField("project_id", req.ProjectID).
			Error(r.Context(), "access evaluation failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, decision)
}
