package syncmanager

import "errors"

var (
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("sync manager destroyed")
	// ErrConnectionFailed reports a push-channel write or open failure.
	ErrConnectionFailed = errors.New("push connection failed")
	// ErrTimeout reports a correlated request that never got its reply.
	ErrTimeout = errors.New("sync request timed out")
)
