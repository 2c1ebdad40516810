package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/psychograph/internal/api/middleware"
	"github.com/Harshitk-cp/psychograph/internal/service"
)

const defaultUsageLimit = 50

type CreditsHandler struct {
	svc *service.CreditService
}

func NewCreditsHandler(svc *service.CreditService) *CreditsHandler {
	return &CreditsHandler{svc: svc}
}

func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	l, err := h.svc.GetBalance(r.Context(), tenant.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *CreditsHandler) Provision(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in service.ProvisionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l, err := h.svc.Provision(r.Context(), tenant.ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type consumeRequest struct {
	Cost    int            `json:"cost"`
	Context map[string]any `json:"context,omitempty"`
}

// Consume debits the ledger directly. The Idempotency-Key header makes
// retries safe: a replay returns the original result without charging again.
func (h *CreditsHandler) Consume(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req consumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := middleware.IdempotencyKeyFromContext(r.Context())
	res, err := h.svc.Consume(r.Context(), tenant.ID, req.Cost, key, req.Context)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if res.Replayed {
		w.Header().Set(middleware.IdempotentReplayedHeader, "true")
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CreditsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := min(queryInt(r, "limit", defaultUsageLimit), maxListLimit)
	usage, err := h.svc.ListUsage(r.Context(), tenant.ID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": usage, "count": len(usage)})
}
