package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/api/middleware"
	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/service"
)

const (
	defaultAuditLimit   = 100
	maxAuditLimit       = 1000
	defaultReportWindow = 30 * 24 * time.Hour
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// Logs lists audit records. Supported query parameters: start, end
// (RFC 3339), operation, success (bool) and limit.
func (h *AuditHandler) Logs(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC 3339")
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC 3339")
		return
	}

	f := domain.AuditFilter{
		Start:     start,
		End:       end,
		Operation: r.URL.Query().Get("operation"),
		Limit:     min(queryInt(r, "limit", defaultAuditLimit), maxAuditLimit),
	}
	if v := r.URL.Query().Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "success must be a boolean")
			return
		}
		f.Success = &success
	}

	logs, err := h.svc.GetAuditLogs(r.Context(), tenant.ID, f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

// Report aggregates the tenant's audit trail. The window defaults to the
// last 30 days.
func (h *AuditHandler) Report(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC 3339")
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC 3339")
		return
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultReportWindow)
	}

	report, err := h.svc.GenerateComplianceReport(r.Context(), tenant.ID, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
