package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/psychograph/internal/resilience"
)

type GovernanceHandler struct {
	breakers *resilience.BreakerRegistry
}

func NewGovernanceHandler(breakers *resilience.BreakerRegistry) *GovernanceHandler {
	return &GovernanceHandler{breakers: breakers}
}

// Breakers reports the state of every circuit breaker created so far.
func (h *GovernanceHandler) Breakers(w http.ResponseWriter, r *http.Request) {
	snaps := h.breakers.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{"breakers": snaps, "count": len(snaps)})
}
