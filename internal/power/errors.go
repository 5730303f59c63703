package power

import "codeberg.org/mutker/powerctl/internal/errors"

const (
	// Switching errors
	ErrSwitchFailed = errors.ErrorCode("power_switch_failed")
	ErrStatusFailed = errors.ErrorCode("power_status_failed")
	ErrRateLimited  = errors.ErrorCode("power_rate_limited")

	// Governor errors
	ErrGovernorUnsupported = errors.ErrorCode("power_governor_unsupported")

	// Selection errors
	ErrUnknownBackend     = errors.ErrorCode("power_backend_unknown")
	ErrNoBackendAvailable = errors.ErrorCode("power_no_backend")
)

var errFactory = errors.New()
