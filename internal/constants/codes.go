package constants

// Error codes used in API responses.
// These are the machine-readable codes returned in the "error" field.
const (
	// Common error codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRateLimited    = "RATE_LIMITED"

	// Shortener-specific codes
	CodeInvalidURL          = "INVALID_URL"
	CodeInvalidCode         = "INVALID_CODE"
	CodeCustomCodeTaken     = "CUSTOM_CODE_TAKEN"
	CodeGenerationExhausted = "GENERATION_EXHAUSTED"
	CodeLinkExpired         = "LINK_EXPIRED"
	CodeLinkNotFound        = "LINK_NOT_FOUND"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"

	// Success codes
	CodeLinkCreated = "LINK_CREATED"
	CodeStatsFound  = "STATS_FOUND"
)
