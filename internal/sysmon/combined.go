package sysmon

import "io"

// Combined samples several sources and reports the busiest one as a
// utilization fraction. Its core count is 1, so thresholds act
// directly on the fraction of whichever resource is most in demand.
type Combined struct {
	sources []Source
}

func NewCombined(sources ...Source) *Combined {
	return &Combined{sources: sources}
}

func (s *Combined) Name() string {
	return "combined"
}

func (s *Combined) Sample() (float64, error) {
	var (
		peak     float64
		sampled  bool
		firstErr error
	)

	for _, src := range s.sources {
		if !src.IsAvailable() {
			continue
		}

		v, err := src.Sample()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		cores := src.CoreCount()
		if cores < 1 {
			cores = 1
		}

		if frac := v / float64(cores); frac > peak {
			peak = frac
		}

		sampled = true
	}

	if !sampled {
		if firstErr != nil {
			return 0, firstErr
		}

		return 0, errFactory.New(ErrNoSourceAvailable)
	}

	return peak, nil
}

func (s *Combined) CoreCount() int {
	return 1
}

func (s *Combined) IsAvailable() bool {
	for _, src := range s.sources {
		if src.IsAvailable() {
			return true
		}
	}

	return false
}

// Close closes every closable child source.
func (s *Combined) Close() error {
	var firstErr error

	for _, src := range s.sources {
		if closer, ok := src.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
