package apperror

// Codes returned in the error envelope. Clients branch on these, never on
// the message text.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
	CodeTooMany      = "TOO_MANY_REQUESTS"

	CodeInternalError = "INTERNAL_ERROR"
	// CodeServiceUnavailable marks a storage round trip that failed after
	// retries. The in-memory state was left untouched.
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)
