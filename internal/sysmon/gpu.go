package sysmon

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// nvmlLib abstracts the NVML entry points the source needs, for testing
type nvmlLib interface {
	Init() error
	Shutdown() error
	DeviceCount() (int, error)
	Utilization(index int) (float64, error)
}

type nvmlWrapper struct {
	initialized bool
}

func (w *nvmlWrapper) Init() error {
	if w.initialized {
		return nil
	}

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrGPUInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	if !w.initialized {
		return nil
	}

	if ret := nvml.Shutdown(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrGPUShutdownFailed, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) DeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrGPUReadFailed, newNVMLError(ret))
	}

	return count, nil
}

func (w *nvmlWrapper) Utilization(index int) (float64, error) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrGPUReadFailed, newNVMLError(ret))
	}

	util, ret := device.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrGPUReadFailed, newNVMLError(ret))
	}

	return float64(util.Gpu) / 100, nil
}

// GPUUtilization samples NVIDIA GPU utilization and expresses it as a
// load-equivalent figure: the number of busy devices. Useful on hosts
// whose heavy work runs on the GPU while the CPU sits idle.
type GPUUtilization struct {
	lib     nvmlLib
	devices int
}

func NewGPUUtilization() (*GPUUtilization, error) {
	return newGPUUtilization(&nvmlWrapper{})
}

func newGPUUtilization(lib nvmlLib) (*GPUUtilization, error) {
	if err := lib.Init(); err != nil {
		return nil, err
	}

	count, err := lib.DeviceCount()
	if err != nil {
		_ = lib.Shutdown()
		return nil, err
	}

	if count < 1 {
		_ = lib.Shutdown()
		return nil, errFactory.New(ErrGPUNoDevices)
	}

	return &GPUUtilization{lib: lib, devices: count}, nil
}

func (s *GPUUtilization) Name() string {
	return "gpu"
}

func (s *GPUUtilization) Sample() (float64, error) {
	total := 0.0
	for i := 0; i < s.devices; i++ {
		util, err := s.lib.Utilization(i)
		if err != nil {
			return 0, err
		}

		total += util
	}

	return total, nil
}

func (s *GPUUtilization) CoreCount() int {
	return s.devices
}

func (s *GPUUtilization) IsAvailable() bool {
	_, err := s.lib.Utilization(0)

	return err == nil
}

// Close shuts NVML down. The source is unusable afterwards.
func (s *GPUUtilization) Close() error {
	return s.lib.Shutdown()
}
