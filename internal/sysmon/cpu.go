package sysmon

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUPercent samples total CPU utilization between consecutive calls
// and expresses it as a load-equivalent figure (busy cores demanded).
// Works on platforms without load averages; the first sample after
// construction reads low because the delta baseline is primed at
// construction time.
type CPUPercent struct {
	cores     int
	percentFn func(time.Duration, bool) ([]float64, error)
	timesFn   func(bool) ([]cpu.TimesStat, error)
}

func NewCPUPercent() *CPUPercent {
	s := &CPUPercent{
		cores:     logicalCores(),
		percentFn: cpu.Percent,
		timesFn:   cpu.Times,
	}

	// Prime the delta baseline so the first real sample measures the
	// interval since now rather than since boot.
	_, _ = s.percentFn(0, false)

	return s
}

func (s *CPUPercent) Name() string {
	return "cpu"
}

func (s *CPUPercent) Sample() (float64, error) {
	pcts, err := s.percentFn(0, false)
	if err != nil {
		return 0, errFactory.Wrap(ErrCPUReadFailed, err)
	}

	if len(pcts) == 0 {
		return 0, errFactory.New(ErrCPUReadFailed)
	}

	return pcts[0] / 100 * float64(s.cores), nil
}

func (s *CPUPercent) CoreCount() int {
	return s.cores
}

// IsAvailable probes the raw counters rather than the percentage API:
// reading percentages here would reset the delta baseline Sample
// measures against.
func (s *CPUPercent) IsAvailable() bool {
	_, err := s.timesFn(false)

	return err == nil
}
