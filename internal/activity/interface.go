package activity

import "time"

// Source supplies the load figure the monitor samples. Implementations
// report a system-wide load (a load average or an equivalent proxy)
// that the engine normalizes against the core count.
type Source interface {
	// Name returns a short identifier for logs.
	Name() string

	// Sample returns the current load figure. Implementations return an
	// error instead of panicking; the monitor substitutes 0.0 and keeps
	// sampling.
	Sample() (float64, error)

	// CoreCount returns the number of schedulable units the load figure
	// is measured against. Must be at least 1. The monitor caches it
	// when the engine is built.
	CoreCount() int

	// IsAvailable returns whether the underlying metric can currently
	// be read.
	IsAvailable() bool
}

// Callback receives state transitions. True means the system turned
// active (enter performance mode), false means it turned idle (enter
// power-saving mode). Invoked synchronously from the sampling
// goroutine: once with the initial state when the monitor starts, then
// exactly once per transition.
type Callback func(active bool)

// Observer receives every evaluated sample. Intended for metrics
// recording; transitions still go through the Callback.
type Observer func(sample Sample, decision Decision)

// Sample is a single load reading.
type Sample struct {
	Load      float64
	Timestamp time.Time
}
