package sysmon

import (
	"codeberg.org/mutker/powerctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Selection errors
	ErrUnknownSource     = errors.ErrorCode("source_unknown")
	ErrNoSourceAvailable = errors.ErrorCode("source_none_available")

	// Read errors
	ErrLoadReadFailed = errors.ErrorCode("source_load_read_failed")
	ErrCPUReadFailed  = errors.ErrorCode("source_cpu_read_failed")
	ErrGPUReadFailed  = errors.ErrorCode("source_gpu_read_failed")

	// GPU lifecycle errors
	ErrGPUInitFailed     = errors.ErrorCode("source_gpu_init_failed")
	ErrGPUShutdownFailed = errors.ErrorCode("source_gpu_shutdown_failed")
	ErrGPUNoDevices      = errors.ErrorCode("source_gpu_no_devices")
)

var errFactory = errors.New()

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}

	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
