package sysmon

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
)

// LoadAverage samples the one-minute load average. Preferred wherever
// the kernel maintains load averages.
type LoadAverage struct {
	cores int
	avgFn func() (*load.AvgStat, error)
}

func NewLoadAverage() *LoadAverage {
	return &LoadAverage{
		cores: logicalCores(),
		avgFn: load.Avg,
	}
}

func (s *LoadAverage) Name() string {
	return "loadavg"
}

func (s *LoadAverage) Sample() (float64, error) {
	avg, err := s.avgFn()
	if err != nil {
		return 0, errFactory.Wrap(ErrLoadReadFailed, err)
	}

	return avg.Load1, nil
}

func (s *LoadAverage) CoreCount() int {
	return s.cores
}

func (s *LoadAverage) IsAvailable() bool {
	if runtime.GOOS == "windows" {
		return false
	}

	_, err := s.avgFn()

	return err == nil
}

// logicalCores returns the logical CPU count, falling back to
// runtime.NumCPU when the probe fails.
func logicalCores() int {
	count, err := cpu.Counts(true)
	if err != nil || count < 1 {
		return runtime.NumCPU()
	}

	return count
}
