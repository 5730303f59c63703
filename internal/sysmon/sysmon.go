package sysmon

import "codeberg.org/mutker/powerctl/internal/logger"

// New builds the source named by kind: loadavg, cpu, gpu, combined, or
// auto (loadavg when the kernel provides it, cpu otherwise). Closable
// sources (gpu, combined) are owned by the caller.
func New(kind string, log logger.Logger) (Source, error) {
	switch kind {
	case "loadavg":
		return NewLoadAverage(), nil
	case "cpu":
		return NewCPUPercent(), nil
	case "gpu":
		return NewGPUUtilization()
	case "combined":
		base := pickAuto(log)

		gpuSrc, err := NewGPUUtilization()
		if err != nil {
			log.Warn().Err(err).Msg("GPU utilization unavailable, combining CPU demand only")
			return NewCombined(base), nil
		}

		return NewCombined(base, gpuSrc), nil
	case "auto", "":
		return pickAuto(log), nil
	default:
		return nil, errFactory.WithData(ErrUnknownSource, kind)
	}
}

func pickAuto(log logger.Logger) Source {
	la := NewLoadAverage()
	if la.IsAvailable() {
		return la
	}

	log.Warn().Msg("Load averages unavailable, falling back to CPU utilization")

	return NewCPUPercent()
}
