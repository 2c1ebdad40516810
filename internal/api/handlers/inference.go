package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/psychograph/internal/api/middleware"
	"github.com/Harshitk-cp/psychograph/internal/service"
	"github.com/go-chi/chi/v5"
)

type InferenceHandler struct {
	orch *service.Orchestrator
}

func NewInferenceHandler(orch *service.Orchestrator) *InferenceHandler {
	return &InferenceHandler{orch: orch}
}

// Run executes one inference cycle for the user in the path.
func (h *InferenceHandler) Run(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.orch.RunInferenceCycle(r.Context(), tenant.ID, chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
