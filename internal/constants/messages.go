package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgUnauthorized       = "Unauthorized"
	MsgRateLimited        = "Too many requests"

	// Shortener-specific messages
	MsgInvalidURL          = "Invalid URL (must be http or https)"
	MsgInvalidCode         = "Invalid code (base62, at most 32 characters)"
	MsgCustomCodeTaken     = "Custom code already taken"
	MsgGenerationExhausted = "Could not generate a unique code, try again"
	MsgLinkExpired         = "Link expired"
	MsgLinkNotFound        = "Link not found"
	MsgStoreUnavailable    = "Link store unavailable, try again later"
)
