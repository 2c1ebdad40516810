package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"github.com/Harshitk-cp/psychograph/internal/service"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error             string            `json:"error"`
	Code              domain.ResultCode `json:"code,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
	Remaining         *int              `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// writeServiceError maps a service error onto the HTTP surface: 400 for
// input, 402 for credits, 429 and 503 with Retry-After for back-pressure,
// 404 for missing resources and 500 otherwise.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLedgerNotFound), errors.Is(err, service.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, service.ErrTenantConflict):
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	code := service.ResultCodeOf(err)
	resp := errorResponse{Error: err.Error(), Code: code}

	var retryAfter time.Duration
	var gwErr *service.GatewayError
	if errors.As(err, &gwErr) {
		retryAfter = gwErr.RetryAfter
	}
	var insufficient *service.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		resp.Remaining = &insufficient.Remaining
	}

	var status int
	switch code {
	case domain.ResultValidationError:
		status = http.StatusBadRequest
	case domain.ResultInsufficientCredits:
		status = http.StatusPaymentRequired
	case domain.ResultRateLimited:
		status = http.StatusTooManyRequests
	case domain.ResultCircuitOpen:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal error"
	}

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		secs := resilience.RetryAfterSeconds(retryAfter)
		resp.RetryAfterSeconds = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, status, resp)
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// queryTime parses an RFC 3339 query parameter. A missing value is the zero
// time.
func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
