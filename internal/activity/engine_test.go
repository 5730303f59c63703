package activity_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/powerctl/internal/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Unix(1700000000, 0)

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name        string
		performance float64
		powersave   float64
		wantErr     bool
	}{
		{"typical thresholds", 0.70, 0.30, false},
		{"equal thresholds", 0.50, 0.50, false},
		{"zero performance", 0, 0.30, true},
		{"zero powersave", 0.70, 0, true},
		{"inverted order", 0.30, 0.70, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := activity.NewEngine(tt.performance, tt.powersave, 1)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngineStartsIdle(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 1)
	require.NoError(t, err)
	assert.False(t, e.Active(), "Expected initial state idle")
}

func TestEngineClampsCoreCount(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, e.CoreCount(), "Expected core count clamped to 1")
}

func TestEngineDeadZoneKeepsState(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 1)
	require.NoError(t, err)

	dec := e.Step(0.5, base)
	assert.False(t, dec.Changed, "Dead zone sample must not change state")
	assert.False(t, dec.Active)

	dec = e.Step(0.8, base.Add(61*time.Second))
	require.True(t, dec.Changed)
	require.True(t, dec.Active)

	dec = e.Step(0.5, base.Add(122*time.Second))
	assert.False(t, dec.Changed, "Dead zone sample must not change state")
	assert.True(t, dec.Active, "Expected state to stay active in the dead zone")
}

func TestEngineBoundaryExactness(t *testing.T) {
	// Two cores scale the thresholds to 1.4 and 0.6
	e, err := activity.NewEngine(0.70, 0.30, 2)
	require.NoError(t, err)

	dec := e.Step(1.4, base)
	assert.False(t, dec.Changed, "Load equal to the upper bound stays in the dead zone")

	dec = e.Step(math.Nextafter(1.4, 2), base.Add(time.Second))
	require.True(t, dec.Changed, "Smallest increment above the upper bound must activate")
	require.True(t, dec.Active)

	dec = e.Step(0.6, base.Add(62*time.Second))
	assert.False(t, dec.Changed, "Load equal to the lower bound stays in the dead zone")
	assert.True(t, dec.Active)

	dec = e.Step(math.Nextafter(0.6, 0), base.Add(63*time.Second))
	require.True(t, dec.Changed, "Smallest decrement below the lower bound must idle")
	assert.False(t, dec.Active)
}

func TestEngineSpacedTransitions(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 1)
	require.NoError(t, err)

	loads := []float64{0.8, 0.5, 0.2, 0.5, 0.8}
	want := []bool{true, true, false, false, true}

	for i, load := range loads {
		dec := e.Step(load, base.Add(time.Duration(i)*61*time.Second))
		assert.Equal(t, want[i], dec.Active, "unexpected state at step %d", i)
	}
}

func TestEngineSuppressesFlapping(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 1)
	require.NoError(t, err)

	// Same sequence compressed into a 10s window: the idle flip at step
	// 2 lands inside the minimum interval and is absorbed.
	loads := []float64{0.8, 0.5, 0.2, 0.5, 0.8}

	for i, load := range loads {
		dec := e.Step(load, base.Add(time.Duration(i)*2*time.Second))
		assert.True(t, dec.Active, "expected state to hold active at step %d", i)

		if i == 2 {
			assert.True(t, dec.Suppressed, "expected the idle flip to be suppressed")
			assert.Greater(t, dec.Remaining, time.Duration(0))
		}
	}
}

func TestEngineSuppressedTransitionIsAbsorbed(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 1)
	require.NoError(t, err)

	dec := e.Step(0.8, base)
	require.True(t, dec.Changed)

	dec = e.Step(0.2, base.Add(10*time.Second))
	require.True(t, dec.Suppressed)

	// Load recovered before the window expired: nothing fires later.
	dec = e.Step(0.5, base.Add(70*time.Second))
	assert.False(t, dec.Changed, "Absorbed transition must not replay after the window")
	assert.True(t, dec.Active)
}

func TestEngineFirstChangeExempt(t *testing.T) {
	e, err := activity.NewEngine(0.70, 0.30, 1)
	require.NoError(t, err)

	// An idle first evaluation does not arm the suppression window.
	dec := e.Step(0.2, base)
	require.False(t, dec.Changed)

	dec = e.Step(0.9, base.Add(time.Second))
	assert.True(t, dec.Changed, "First actual change must not be suppressed")
	assert.True(t, dec.Active)

	// But it does arm the window for the change after it.
	dec = e.Step(0.1, base.Add(2*time.Second))
	assert.True(t, dec.Suppressed)
}

func TestEngineEqualThresholds(t *testing.T) {
	e, err := activity.NewEngine(0.50, 0.50, 1)
	require.NoError(t, err)

	dec := e.Step(0.5, base)
	assert.False(t, dec.Changed, "Boundary sample stays put even with a collapsed dead zone")

	dec = e.Step(0.6, base.Add(time.Second))
	require.True(t, dec.Active)

	dec = e.Step(0.4, base.Add(2*time.Second))
	assert.True(t, dec.Suppressed, "Collapsed dead zone must not oscillate inside the window")

	dec = e.Step(0.4, base.Add(63*time.Second))
	assert.True(t, dec.Changed)
	assert.False(t, dec.Active)
}

func TestEngineCoreScaling(t *testing.T) {
	// Eight cores scale the thresholds to 5.6 and 2.4
	e, err := activity.NewEngine(0.70, 0.30, 8)
	require.NoError(t, err)

	dec := e.Step(5.0, base)
	assert.False(t, dec.Changed, "Load below the scaled upper bound stays idle")

	dec = e.Step(6.0, base.Add(time.Second))
	require.True(t, dec.Active)

	dec = e.Step(2.4, base.Add(62*time.Second))
	assert.False(t, dec.Changed, "Load equal to the scaled lower bound stays active")

	dec = e.Step(2.3, base.Add(124*time.Second))
	require.True(t, dec.Changed)
	assert.False(t, dec.Active)
}
