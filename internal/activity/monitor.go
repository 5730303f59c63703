package activity

import (
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/powerctl/internal/logger"
)

const (
	defaultPerformanceThreshold = 0.70
	defaultPowersaveThreshold   = 0.30
)

// Monitor samples a Source on a fixed interval, feeds the hysteresis
// engine, and invokes the callback on state transitions. Lifecycle
// calls (Start, Stop, the setters) must be serialized by the caller;
// IsActive and IsRunning are safe from any goroutine.
type Monitor struct {
	source Source
	log    logger.Logger

	performance float64
	powersave   float64
	interval    time.Duration
	callback    Callback
	observer    Observer

	engine  *Engine
	running atomic.Bool
	active  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New builds a monitor around the given source. Thresholds default to
// 0.70/0.30 per core; the sampling frequency has no default and must
// be set before Start.
func New(source Source, log logger.Logger) *Monitor {
	if log == nil {
		log = logger.Nop()
	}

	return &Monitor{
		source:      source,
		log:         log,
		performance: defaultPerformanceThreshold,
		powersave:   defaultPowersaveThreshold,
	}
}

// SetThresholds configures the per-core hysteresis thresholds.
// Rejected while running.
func (m *Monitor) SetThresholds(performance, powersave float64) error {
	if m.running.Load() {
		return errFactory.New(ErrMonitorRunning)
	}

	if performance <= 0 || powersave <= 0 || powersave > performance {
		return errFactory.WithData(ErrInvalidThresholds, map[string]float64{
			"performance": performance,
			"powersave":   powersave,
		})
	}

	m.performance = performance
	m.powersave = powersave

	return nil
}

// SetFrequency sets the sampling interval in whole seconds. Rejected
// while running.
func (m *Monitor) SetFrequency(seconds int) error {
	if m.running.Load() {
		return errFactory.New(ErrMonitorRunning)
	}

	if seconds <= 0 {
		return errFactory.WithData(ErrInvalidFrequency, seconds)
	}

	m.interval = time.Duration(seconds) * time.Second

	return nil
}

// SetCallback installs the transition callback. Rejected while running.
func (m *Monitor) SetCallback(cb Callback) error {
	if m.running.Load() {
		return errFactory.New(ErrMonitorRunning)
	}

	m.callback = cb

	return nil
}

// SetObserver installs the per-sample observer. Rejected while running.
func (m *Monitor) SetObserver(obs Observer) error {
	if m.running.Load() {
		return errFactory.New(ErrMonitorRunning)
	}

	m.observer = obs

	return nil
}

// Start validates the configuration, evaluates the first sample
// immediately, invokes the callback once with the initial state, and
// spawns the sampling goroutine. Starting a running monitor is a
// no-op returning nil. On failure nothing is spawned and no callback
// runs.
func (m *Monitor) Start() error {
	if m.running.Load() {
		m.log.Debug().Msg("Activity monitor already running")
		return nil
	}

	if m.interval <= 0 {
		err := errFactory.WithData(ErrInvalidFrequency, int(m.interval/time.Second))
		m.log.ErrorWithCode(err).Msg("Cannot start: sampling frequency not set")

		return err
	}

	if m.source == nil || !m.source.IsAvailable() {
		err := errFactory.New(ErrSourceUnavailable)
		m.log.ErrorWithCode(err).Msg("Cannot start: load source unavailable")

		return err
	}

	// Fresh engine per start: a restart begins idle with a clean
	// suppression window, and the core count is re-read here.
	engine, err := NewEngine(m.performance, m.powersave, m.source.CoreCount())
	if err != nil {
		m.log.Error().Err(err).Msg("Cannot start: invalid thresholds")

		return err
	}
	m.engine = engine

	m.done = make(chan struct{})

	// First evaluation happens before the first tick; the callback
	// always fires once with the resulting state.
	dec := m.evaluate(time.Now())
	m.active.Store(dec.Active)
	m.invokeCallback(dec.Active)

	m.running.Store(true)
	m.wg.Add(1)
	go m.run()

	m.log.Info().
		Str("source", m.source.Name()).
		Int("cores", engine.CoreCount()).
		Float64("performance_threshold", m.performance).
		Float64("powersave_threshold", m.powersave).
		Dur("interval", m.interval).
		Msg("Activity monitor started")

	return nil
}

// Stop signals the sampling goroutine and blocks until it has fully
// exited; no callback runs after Stop returns. Stopping a stopped
// monitor is a no-op.
func (m *Monitor) Stop() {
	if !m.running.Load() {
		return
	}

	close(m.done)
	m.wg.Wait()
	m.running.Store(false)

	m.log.Info().Msg("Activity monitor stopped")
}

// IsActive reports the current engine state. Safe from any goroutine.
func (m *Monitor) IsActive() bool {
	return m.active.Load()
}

// IsRunning reports whether the sampling goroutine is live.
func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if dec := m.evaluate(time.Now()); dec.Changed {
				m.invokeCallback(dec.Active)
			}
		}
	}
}

// evaluate reads one sample, steps the engine, and logs the outcome.
// Unavailable or failing sources sample as zero load so a wedged
// metric eventually drives the system idle instead of pinning it.
func (m *Monitor) evaluate(now time.Time) Decision {
	load := 0.0

	switch {
	case !m.source.IsAvailable():
		m.log.Warn().Str("source", m.source.Name()).Msg("Load source unavailable, sampling as zero")
	default:
		v, err := m.source.Sample()
		if err != nil {
			m.log.Warn().Err(err).Str("source", m.source.Name()).Msg("Load sample failed, sampling as zero")
		} else {
			load = v
		}
	}

	dec := m.engine.Step(load, now)

	if m.observer != nil {
		m.observer(Sample{Load: load, Timestamp: now}, dec)
	}

	switch {
	case dec.Changed:
		m.active.Store(dec.Active)
		if dec.Active {
			m.log.Info().
				Float64("load", load).
				Int("cores", m.engine.CoreCount()).
				Msg("High load detected, system active")
		} else {
			m.log.Info().
				Float64("load", load).
				Int("cores", m.engine.CoreCount()).
				Msg("Low load detected, system idle")
		}
	case dec.Suppressed:
		m.log.Info().
			Float64("load", load).
			Bool("active", dec.Active).
			Dur("remaining", dec.Remaining).
			Msg("State change suppressed")
	default:
		m.log.Debug().
			Float64("load", load).
			Bool("active", dec.Active).
			Msg("Load sampled")
	}

	return dec
}

// invokeCallback shields the sampling goroutine from a panicking
// callback.
func (m *Monitor) invokeCallback(active bool) {
	if m.callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("Activity callback panicked")
		}
	}()

	m.callback(active)
}
