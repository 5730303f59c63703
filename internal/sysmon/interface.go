package sysmon

// Source supplies load samples for the activity monitor. The figure is
// load-average-like: the number of cores worth of work the system
// currently demands.
type Source interface {
	// Name returns a short identifier for logs.
	Name() string

	// Sample returns the current load figure.
	Sample() (float64, error)

	// CoreCount returns the number of schedulable units the load figure
	// is measured against. At least 1.
	CoreCount() int

	// IsAvailable returns whether the underlying metric can currently
	// be read.
	IsAvailable() bool
}
