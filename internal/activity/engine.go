package activity

import "time"

// MinStateChangeInterval is the shortest time between two state
// changes. A would-be transition inside the window is absorbed, not
// queued: the engine re-evaluates from scratch on the next sample.
const MinStateChangeInterval = 60 * time.Second

// Engine decides between active and idle using dual-threshold
// hysteresis. Loads above the scaled performance threshold turn it
// active, loads below the scaled powersave threshold turn it idle, and
// everything in between (the dead zone, boundary values included)
// keeps the current state. Not safe for concurrent use; the monitor
// owns it.
type Engine struct {
	performance float64 // scaled by core count
	powersave   float64 // scaled by core count
	cores       int
	active      bool
	lastChange  time.Time
}

// Decision is the outcome of a single engine step.
type Decision struct {
	Active     bool
	Changed    bool
	Suppressed bool
	// Remaining is how long the suppression window still holds.
	// Zero unless Suppressed.
	Remaining time.Duration
}

// NewEngine builds an engine from per-core thresholds and the core
// count. Thresholds are fractions of a fully loaded core; powersave
// must not exceed performance (equal thresholds collapse the dead zone
// to a point). A core count below 1 is clamped.
func NewEngine(performance, powersave float64, cores int) (*Engine, error) {
	if performance <= 0 || powersave <= 0 || powersave > performance {
		return nil, errFactory.WithData(ErrInvalidThresholds, map[string]float64{
			"performance": performance,
			"powersave":   powersave,
		})
	}

	if cores < 1 {
		cores = 1
	}

	return &Engine{
		performance: performance * float64(cores),
		powersave:   powersave * float64(cores),
		cores:       cores,
	}, nil
}

// Step evaluates one sample taken at the given time. The comparisons
// are strict on both sides: a load exactly on a threshold stays in the
// dead zone.
func (e *Engine) Step(load float64, now time.Time) Decision {
	want := e.active
	switch {
	case load > e.performance:
		want = true
	case load < e.powersave:
		want = false
	}

	if want == e.active {
		return Decision{Active: e.active}
	}

	// The first change after construction is exempt: lastChange is only
	// set once a change actually happens.
	if !e.lastChange.IsZero() {
		if held := now.Sub(e.lastChange); held < MinStateChangeInterval {
			return Decision{
				Active:     e.active,
				Suppressed: true,
				Remaining:  MinStateChangeInterval - held,
			}
		}
	}

	e.active = want
	e.lastChange = now

	return Decision{Active: want, Changed: true}
}

// Active returns the current state.
func (e *Engine) Active() bool {
	return e.active
}

// CoreCount returns the core count the thresholds were scaled by.
func (e *Engine) CoreCount() int {
	return e.cores
}
