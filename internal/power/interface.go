package power

import "context"

// Mode identifies the binary power state of the host.
type Mode string

const (
	ModePerformance Mode = "performance"
	ModePowersave   Mode = "powersave"
	ModeUnknown     Mode = "unknown"
)

// Controller switches the host between power modes.
type Controller interface {
	// Name returns a short identifier for logs.
	Name() string

	// IsAvailable returns whether the backend can drive this host.
	IsAvailable() bool

	// SetPerformanceMode switches the host to performance mode.
	SetPerformanceMode(ctx context.Context) error

	// SetPowersaveMode switches the host to power-saving mode.
	SetPowersaveMode(ctx context.Context) error

	// CurrentMode reports the mode the host is currently in.
	CurrentMode(ctx context.Context) (Mode, error)
}
