package power

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/powerctl/internal/errors"
	"codeberg.org/mutker/powerctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRun struct {
	out   []byte
	err   error
	calls int
	args  [][]string
}

func (f *fakeRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	f.args = append(f.args, append([]string{name}, args...))

	return f.out, f.err
}

func newTestTLP(f *fakeRun) *TLP {
	return &TLP{log: logger.Nop(), run: f.run, mode: ModeUnknown}
}

func TestTLPSwitchMode(t *testing.T) {
	f := &fakeRun{out: []byte("Applying power save settings...done.\n")}
	c := newTestTLP(f)

	require.NoError(t, c.SetPowersaveMode(context.Background()))
	require.Equal(t, 1, f.calls)
	assert.Equal(t, []string{"tlp", "bat"}, f.args[0])

	// Repeating the same mode is skipped by the cache
	require.NoError(t, c.SetPowersaveMode(context.Background()))
	assert.Equal(t, 1, f.calls, "Expected redundant switch to be skipped")

	require.NoError(t, c.SetPerformanceMode(context.Background()))
	require.Equal(t, 2, f.calls)
	assert.Equal(t, []string{"tlp", "ac"}, f.args[1])
}

func TestTLPDetectsErrorInOutput(t *testing.T) {
	f := &fakeRun{out: []byte("Error: tlp is not enabled in /etc/tlp.conf\n")}
	c := newTestTLP(f)

	err := c.SetPerformanceMode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrSwitchFailed))

	// A failed switch must not poison the cache
	f.out = []byte("done.\n")
	assert.NoError(t, c.SetPerformanceMode(context.Background()))
}

func TestTLPIgnoresExitCodeWhenOutputClean(t *testing.T) {
	// TLP is known to return nonsense exit codes; clean output wins.
	f := &fakeRun{
		out: []byte("Applying settings...done.\n"),
		err: &exec.ExitError{ProcessState: &os.ProcessState{}},
	}
	c := newTestTLP(f)

	assert.NoError(t, c.SetPerformanceMode(context.Background()))
}

func TestTLPSwitchFailsWhenCommandCannotRun(t *testing.T) {
	f := &fakeRun{err: exec.ErrNotFound}
	c := newTestTLP(f)

	err := c.SetPowersaveMode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrSwitchFailed))
}

func TestParseTLPStatus(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want Mode
	}{
		{"mode ac", "+++ TLP Status\nMode           = AC\nPower source   = AC\n", ModePerformance},
		{"mode battery", "Mode           = battery\n", ModePowersave},
		{"power source only", "Power source   = battery\n", ModePowersave},
		{"unknown", "no status here\n", ModeUnknown},
		{"empty", "", ModeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTLPStatus(tt.out))
		})
	}
}

func TestTLPCurrentMode(t *testing.T) {
	f := &fakeRun{out: []byte("Mode           = AC\n")}
	c := newTestTLP(f)

	mode, err := c.CurrentMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModePerformance, mode)
	assert.Equal(t, []string{"tlp-stat", "-s"}, f.args[0])
}

func writeGovernorTree(t *testing.T, cpus int, available string) string {
	t.Helper()

	root := t.TempDir()
	for i := 0; i < cpus; i++ {
		dir := filepath.Join(root, "cpu"+string(rune('0'+i)), "cpufreq")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "scaling_governor"), []byte("schedutil\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "scaling_available_governors"), []byte(available), 0o644))
	}

	return root
}

func TestGovernorApply(t *testing.T) {
	root := writeGovernorTree(t, 2, "performance powersave schedutil\n")
	c := &Governor{log: logger.Nop(), root: root}

	require.True(t, c.IsAvailable())
	require.NoError(t, c.SetPowersaveMode(context.Background()))

	for _, cpu := range []string{"cpu0", "cpu1"} {
		data, err := os.ReadFile(filepath.Join(root, cpu, "cpufreq", "scaling_governor"))
		require.NoError(t, err)
		assert.Equal(t, "powersave", string(data), "Expected governor written for %s", cpu)
	}

	mode, err := c.CurrentMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModePowersave, mode)
}

func TestGovernorRejectsUnsupported(t *testing.T) {
	root := writeGovernorTree(t, 1, "schedutil performance\n")
	c := &Governor{log: logger.Nop(), root: root}

	err := c.SetPowersaveMode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrGovernorUnsupported))
}

func TestGovernorUnavailableWithoutCpufreq(t *testing.T) {
	c := &Governor{log: logger.Nop(), root: t.TempDir()}

	assert.False(t, c.IsAvailable())

	_, err := c.CurrentMode(context.Background())
	assert.Error(t, err)
}

type fakeController struct {
	name        string
	available   bool
	performance int
	powersave   int
}

func (c *fakeController) Name() string { return c.name }

func (c *fakeController) IsAvailable() bool { return c.available }

func (c *fakeController) SetPerformanceMode(context.Context) error {
	c.performance++
	return nil
}

func (c *fakeController) SetPowersaveMode(context.Context) error {
	c.powersave++
	return nil
}

func (c *fakeController) CurrentMode(context.Context) (Mode, error) {
	return ModeUnknown, nil
}

func TestRateLimitedBoundsSwitches(t *testing.T) {
	inner := &fakeController{name: "fake", available: true}
	c := WithRateLimit(inner, 2, time.Minute, logger.Nop())

	now := time.Unix(1700000000, 0)
	c.nowFn = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.SetPerformanceMode(ctx))
	require.NoError(t, c.SetPowersaveMode(ctx))

	err := c.SetPerformanceMode(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrRateLimited))
	assert.Equal(t, 1, inner.performance, "Limited switch must not reach the backend")

	// The window slides: a minute later switches flow again
	now = now.Add(61 * time.Second)
	require.NoError(t, c.SetPerformanceMode(ctx))
	assert.Equal(t, 2, inner.performance)
}

func TestRateLimitedDelegates(t *testing.T) {
	inner := &fakeController{name: "fake", available: true}
	c := WithRateLimit(inner, 0, 0, logger.Nop())

	assert.Equal(t, "fake", c.Name())
	assert.True(t, c.IsAvailable())

	mode, err := c.CurrentMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeUnknown, mode)
}

func TestNewSelectsBackend(t *testing.T) {
	log := logger.Nop()

	c, err := New("tlp", log)
	require.NoError(t, err)
	assert.Equal(t, "tlp", c.Name())

	c, err = New("governor", log)
	require.NoError(t, err)
	assert.Equal(t, "governor", c.Name())

	_, err = New("powercfg", log)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrUnknownBackend))
}
