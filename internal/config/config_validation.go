package config

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error
// otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Guard.FailureThreshold <= 0 ||
		cfg.Guard.IdempotencyCacheSize <= 0 ||
		cfg.Guard.MaxTimestampAge <= 0 ||
		cfg.Guard.IdempotencyTTL <= 0 {
		return ErrInvalidGuardConfigs
	}

	if cfg.Queue.MaxQueueLength <= 0 || cfg.Queue.MessageTTL <= 0 {
		return ErrInvalidQueueConfigs
	}

	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Transport.PushURL == "" && cfg.Transport.PollingURL == "" {
		return ErrInvalidClientConfigs
	}

	if cfg.Transport.PollingInterval <= 0 || cfg.Transport.MaxReconnectAttempts <= 0 {
		return ErrInvalidClientConfigs
	}

	return nil
}
