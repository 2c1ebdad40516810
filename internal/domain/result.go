package domain

// ResultCode is the error taxonomy surfaced to callers.
type ResultCode string

const (
	ResultOK                  ResultCode = "OK"
	ResultValidationError     ResultCode = "VALIDATION_ERROR"
	ResultRateLimited         ResultCode = "RATE_LIMITED"
	ResultCircuitOpen         ResultCode = "CIRCUIT_OPEN"
	ResultInsufficientCredits ResultCode = "INSUFFICIENT_CREDITS"
	ResultSystemError         ResultCode = "SYSTEM_ERROR"
)

func ValidResultCode(c string) bool {
	switch ResultCode(c) {
	case ResultOK, ResultValidationError, ResultRateLimited, ResultCircuitOpen,
		ResultInsufficientCredits, ResultSystemError:
		return true
	}
	return false
}
