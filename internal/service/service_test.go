package service

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/powerctl/internal/errors"
	"codeberg.org/mutker/powerctl/internal/logger"
)

type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))

	return f.output, f.err
}

func testManager(t *testing.T, fake *fakeRunner) *Manager {
	t.Helper()

	dir := t.TempDir()
	m := NewManager(logger.Nop())
	m.run = fake.run
	m.unitDir = filepath.Join(dir, "units")
	m.binDir = filepath.Join(dir, "bin")
	m.confDir = filepath.Join(dir, "etc")

	require.NoError(t, os.MkdirAll(m.unitDir, 0o755))
	require.NoError(t, os.MkdirAll(m.binDir, 0o755))

	return m
}

func systemctlCalls(fake *fakeRunner) []string {
	var verbs []string
	for _, call := range fake.calls {
		if call[0] == "systemctl" {
			verbs = append(verbs, call[1])
		}
	}

	return verbs
}

func TestInstall(t *testing.T) {
	fake := &fakeRunner{}
	m := testManager(t, fake)

	binPath := filepath.Join(t.TempDir(), "powerctl")
	require.NoError(t, os.WriteFile(binPath, []byte("#!binary"), 0o755))

	require.NoError(t, m.Install(context.Background(), binPath))

	installed, err := os.ReadFile(filepath.Join(m.binDir, "powerctl"))
	require.NoError(t, err)
	assert.Equal(t, "#!binary", string(installed))

	unit, err := os.ReadFile(filepath.Join(m.unitDir, "powerctl.service"))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart="+filepath.Join(m.binDir, "powerctl"))
	assert.Contains(t, string(unit), "--config "+filepath.Join(m.confDir, "powerctl.toml"))
	assert.Contains(t, string(unit), "Restart=always")
	assert.Contains(t, string(unit), "WantedBy=multi-user.target")

	cfg, err := os.ReadFile(filepath.Join(m.confDir, "powerctl.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "performance_threshold")

	assert.Equal(t, []string{"daemon-reload", "enable", "start"}, systemctlCalls(fake))
}

func TestInstallKeepsExistingConfig(t *testing.T) {
	fake := &fakeRunner{}
	m := testManager(t, fake)

	require.NoError(t, os.MkdirAll(m.confDir, 0o755))
	cfgPath := filepath.Join(m.confDir, "powerctl.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("interval = 5\n"), 0o644))

	binPath := filepath.Join(t.TempDir(), "powerctl")
	require.NoError(t, os.WriteFile(binPath, []byte("#!binary"), 0o755))

	require.NoError(t, m.Install(context.Background(), binPath))

	cfg, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "interval = 5\n", string(cfg))
}

func TestInstallMissingBinary(t *testing.T) {
	fake := &fakeRunner{}
	m := testManager(t, fake)

	err := m.Install(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrInstallFailed))
	assert.Empty(t, systemctlCalls(fake))
}

func TestUninstall(t *testing.T) {
	fake := &fakeRunner{}
	m := testManager(t, fake)

	unitPath := filepath.Join(m.unitDir, "powerctl.service")
	require.NoError(t, os.WriteFile(unitPath, []byte("[Unit]"), 0o644))
	target := filepath.Join(m.binDir, "powerctl")
	require.NoError(t, os.WriteFile(target, []byte("#!binary"), 0o755))

	require.NoError(t, m.Uninstall(context.Background()))

	_, err := os.Stat(unitPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, []string{"stop", "disable", "daemon-reload"}, systemctlCalls(fake))
}

func TestUninstallMissingUnit(t *testing.T) {
	fake := &fakeRunner{}
	m := testManager(t, fake)

	assert.NoError(t, m.Uninstall(context.Background()))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   string
	}{
		{name: "active unit", output: "active\n", want: StatusRunning},
		{name: "inactive unit", output: "inactive\n", err: &exec.ExitError{}, want: StatusStopped},
		{name: "failed unit", output: "failed\n", err: &exec.ExitError{}, want: StatusStopped},
		{name: "unknown unit", output: "unknown\n", err: &exec.ExitError{}, want: StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRunner{output: []byte(tt.output), err: tt.err}
			m := testManager(t, fake)

			status, err := m.Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestStatusExecFailure(t *testing.T) {
	fake := &fakeRunner{err: os.ErrPermission}
	m := testManager(t, fake)

	_, err := m.Status(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrStatusFailed))
}
