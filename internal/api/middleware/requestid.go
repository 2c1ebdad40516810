package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"
	// IdempotencyKeyHeader lets clients make a credit-consuming request safe
	// to retry.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response served from a prior request
	// with the same Idempotency-Key.
	IdempotentReplayedHeader = "Idempotent-Replayed"

	requestIDKey      = contextKey("request_id")
	idempotencyKeyCtx = contextKey("idempotency_key")

	maxHeaderIDLength = 128
)

// RequestIDFromContext returns the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IdempotencyKeyFromContext returns the client's Idempotency-Key, or "".
func IdempotencyKeyFromContext(ctx context.Context) string {
	k, _ := ctx.Value(idempotencyKeyCtx).(string)
	return k
}

// RequestID middleware extracts or generates a request ID for each request.
// If X-Request-ID header is present, it uses that value.
// Otherwise, it generates a new UUID.
// The request ID is added to the response headers and stored in context,
// along with any Idempotency-Key the client sent.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxHeaderIDLength {
			requestID = uuid.NewString()
		}

		// Add to response header
		w.Header().Set(RequestIDHeader, requestID)

		// Add to context
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		if key := r.Header.Get(IdempotencyKeyHeader); key != "" && len(key) <= maxHeaderIDLength {
			ctx = context.WithValue(ctx, idempotencyKeyCtx, key)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
