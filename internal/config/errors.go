package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidGuardConfigs indicates invalid webhook integrity settings
	// (for example, a non-positive failure threshold).
	ErrInvalidGuardConfigs = errors.New("invalid guard configuration")
	// ErrInvalidQueueConfigs indicates invalid queue settings
	// (for example, a non-positive queue length cap).
	ErrInvalidQueueConfigs = errors.New("invalid queue configuration")
	// ErrInvalidClientConfigs indicates invalid client transport settings
	// (for example, missing push and polling URLs).
	ErrInvalidClientConfigs = errors.New("invalid client configuration")
)
