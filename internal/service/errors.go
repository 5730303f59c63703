package service

import "codeberg.org/mutker/powerctl/internal/errors"

const (
	// Availability errors
	ErrSystemdUnavailable = errors.ErrorCode("service_systemd_unavailable")

	// Lifecycle errors
	ErrInstallFailed   = errors.ErrorCode("service_install_failed")
	ErrUninstallFailed = errors.ErrorCode("service_uninstall_failed")
	ErrStatusFailed    = errors.ErrorCode("service_status_failed")
)

var errFactory = errors.New()
