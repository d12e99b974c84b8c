package registry

import "errors"

var (
	// ErrShutdown is returned for any operation attempted after Shutdown.
	ErrShutdown = errors.New("registry is shut down")
	// ErrConnectionNotFound is returned by targeted sends to an unknown
	// connection id.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrSendFailed is returned when a targeted send cannot be delivered
	// (socket closed or outbound buffer full). The registry never retries.
	ErrSendFailed = errors.New("send failed")
)
