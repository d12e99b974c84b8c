package adapter

import "errors"

var (
	// ErrPolling marks a failed polling fetch: network error or non-2xx
	// status. The transport manager records it and retries on the next
	// tick; polling failures never escalate.
	ErrPolling = errors.New("polling request failed")
	// ErrInvalidBaseURL is returned at construction for an unusable server
	// address.
	ErrInvalidBaseURL = errors.New("invalid base url")
)
