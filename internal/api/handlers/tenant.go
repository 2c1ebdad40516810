package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/Harshitk-cp/psychograph/internal/api/middleware"
	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/service"
)

type TenantHandler struct {
	svc *service.TenantService
}

func NewTenantHandler(svc *service.TenantService) *TenantHandler {
	return &TenantHandler{svc: svc}
}

type createTenantRequest struct {
	Name string `json:"name"`
}

type createTenantResponse struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	APIKey string               `json:"api_key"`
	Ledger *domain.CreditLedger `json:"ledger"`
}

// Create bootstraps a tenant. The API key is returned once and only its
// hash is stored.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	tenant := &domain.Tenant{
		Name:       req.Name,
		APIKeyHash: middleware.HashAPIKey(apiKey),
	}

	ledger, err := h.svc.Create(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createTenantResponse{
		ID:     tenant.ID.String(),
		Name:   tenant.Name,
		APIKey: apiKey,
		Ledger: ledger,
	})
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "pg_" + hex.EncodeToString(b), nil
}
