package activity

import "codeberg.org/mutker/powerctl/internal/errors"

const (
	// Lifecycle errors
	ErrMonitorRunning = errors.ErrorCode("monitor_running")

	// Configuration errors
	ErrInvalidThresholds = errors.ErrorCode("monitor_invalid_thresholds")
	ErrInvalidFrequency  = errors.ErrorCode("monitor_invalid_frequency")

	// Source errors
	ErrSourceUnavailable = errors.ErrorCode("monitor_source_unavailable")
)

var errFactory = errors.New()
