package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/psychograph/internal/api/middleware"
	"github.com/Harshitk-cp/psychograph/internal/service"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 20
	defaultSimilarLimit = 10
	maxListLimit        = 100
)

type ProfileHandler struct {
	svc *service.ProfileService
}

func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.svc.Get(r.Context(), tenant.ID, chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := min(queryInt(r, "limit", defaultHistoryLimit), maxListLimit)
	history, err := h.svc.History(r.Context(), tenant.ID, chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history, "count": len(history)})
}

func (h *ProfileHandler) Similar(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := min(queryInt(r, "limit", defaultSimilarLimit), maxListLimit)
	similar, err := h.svc.Similar(r.Context(), tenant.ID, chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"similar": similar, "count": len(similar)})
}
