package services

import "errors"

// Sentinel errors shared across services. Route handlers map these onto
// HTTP status codes.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUpstreamUnavailable  = errors.New("upstream model unavailable")
	ErrGenerationFailed     = errors.New("answer generation failed")
)
