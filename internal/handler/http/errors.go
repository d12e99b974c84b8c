package http

import "errors"

// Sentinel errors used by the authentication middleware when parsing the
// "Authorization" HTTP header. Callers can match against them with [errors.Is].
var (
	// ErrEmptyAuthorizationHeader is returned by the auth middleware when the
	// incoming request does not include an "Authorization" header at all.
	ErrEmptyAuthorizationHeader = errors.New("empty `Authorization` header")

	// ErrInvalidToken is returned when the bearer token cannot be parsed or
	// carries no subject.
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrInvalidSignature is returned when a webhook delivery fails
	// HMAC-SHA256 verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
