package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/powerctl/internal/errors"
	"codeberg.org/mutker/powerctl/internal/logger"
	"codeberg.org/mutker/powerctl/internal/pid"
)

const (
	serviceName = "powerctl"

	defaultUnitDir = "/etc/systemd/system"
	defaultBinDir  = "/usr/local/bin"
	defaultConfDir = "/etc/powerctl"

	dirPerm  = 0o755
	filePerm = 0o644
	binPerm  = 0o755
)

// Status values reported by Status
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusUnknown = "unknown"
)

// TLP tunes sysctl knobs under /proc/sys, so kernel tunables stay
// writable in the sandbox.
const unitTemplate = `[Unit]
Description=Load-aware power mode switching
Documentation=https://codeberg.org/mutker/powerctl
After=multi-user.target

[Service]
Type=simple
ExecStart=%s --config %s
Restart=always
RestartSec=10
User=root
Group=root
TimeoutStartSec=30

NoNewPrivileges=yes
ProtectSystem=strict
ProtectHome=yes
ReadWritePaths=/var/lib/powerctl /var/log /run /tmp /proc
PrivateTmp=yes
ProtectKernelModules=yes
ProtectControlGroups=yes

[Install]
WantedBy=multi-user.target
`

const sampleConfig = `# powerctl configuration
# Thresholds are fractions of total capacity: the sampled load divided
# by the core count is compared against them.

interval = 1
performance_threshold = 0.7
powersave_threshold = 0.3

# Load source: auto, loadavg, cpu, gpu or combined
source = "auto"

# Power backend: auto, tlp or governor
backend = "auto"

log_level = "info"
# log_file = "/var/log/powerctl.log"

# Uncomment to record samples to sqlite
# metrics = true
# metrics_db = "/var/lib/powerctl/metrics.db"
`

// runner abstracts command execution for testing
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager installs, removes and inspects the systemd unit.
type Manager struct {
	log logger.Logger
	run runner

	unitDir string
	binDir  string
	confDir string
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		log:     log,
		run:     execRunner,
		unitDir: defaultUnitDir,
		binDir:  defaultBinDir,
		confDir: defaultConfDir,
	}
}

// IsAvailable reports whether systemd can manage services on this host.
func (m *Manager) IsAvailable() bool {
	_, err := exec.LookPath("systemctl")

	return err == nil
}

// Install copies the executable into place, seeds a configuration file
// if none exists, writes the unit and enables it.
func (m *Manager) Install(ctx context.Context, binPath string) error {
	target := filepath.Join(m.binDir, serviceName)

	m.log.Info().Str("path", target).Msg("Installing executable")
	if err := copyFile(binPath, target, binPerm); err != nil {
		return errFactory.Wrap(ErrInstallFailed, err)
	}

	cfgPath := filepath.Join(m.confDir, serviceName+".toml")
	if err := m.writeDefaultConfig(cfgPath); err != nil {
		return errFactory.Wrap(ErrInstallFailed, err)
	}

	unitPath := filepath.Join(m.unitDir, serviceName+".service")
	unit := fmt.Sprintf(unitTemplate, target, cfgPath)
	if err := os.WriteFile(unitPath, []byte(unit), filePerm); err != nil {
		return errFactory.Wrap(ErrInstallFailed, err)
	}

	if err := m.systemctl(ctx, "daemon-reload"); err != nil {
		return errFactory.Wrap(ErrInstallFailed, err)
	}

	// Enable and start are best-effort: the unit is in place either way
	if err := m.systemctl(ctx, "enable", serviceName); err != nil {
		m.log.Warn().Err(err).Msg("Service installed but not enabled")
	}
	if err := m.systemctl(ctx, "start", serviceName); err != nil {
		m.log.Warn().Err(err).Msg("Service installed but not started")
	}

	m.log.Info().Str("unit", unitPath).Msg("Service installed")

	return nil
}

// Uninstall stops the unit and removes everything Install created.
// Sample history under /var/lib/powerctl stays in place.
func (m *Manager) Uninstall(ctx context.Context) error {
	// Stop and disable before removing anything; failures here are
	// expected when the unit never ran
	if err := m.systemctl(ctx, "stop", serviceName); err != nil {
		m.log.Debug().Err(err).Msg("Stop failed during uninstall")
	}
	if err := m.systemctl(ctx, "disable", serviceName); err != nil {
		m.log.Debug().Err(err).Msg("Disable failed during uninstall")
	}

	unitPath := filepath.Join(m.unitDir, serviceName+".service")
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(ErrUninstallFailed, err)
	}

	if err := m.systemctl(ctx, "daemon-reload"); err != nil {
		return errFactory.Wrap(ErrUninstallFailed, err)
	}

	target := filepath.Join(m.binDir, serviceName)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Msg("Failed to remove installed executable")
	}

	if err := os.RemoveAll(m.confDir); err != nil {
		m.log.Warn().Err(err).Msg("Failed to remove configuration directory")
	}

	if err := pid.Remove(); err != nil {
		m.log.Debug().Err(err).Msg("Failed to remove PID file")
	}

	m.log.Info().Msg("Service uninstalled")

	return nil
}

// Status maps "systemctl is-active" output to running/stopped/unknown.
func (m *Manager) Status(ctx context.Context) (string, error) {
	out, err := m.run(ctx, "systemctl", "is-active", serviceName)
	state := strings.TrimSpace(string(out))

	// is-active exits non-zero for anything but "active"; the printed
	// state is still authoritative
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", errFactory.Wrap(ErrStatusFailed, err)
	}

	switch state {
	case "active":
		return StatusRunning, nil
	case "inactive", "failed":
		return StatusStopped, nil
	default:
		return StatusUnknown, nil
	}
}

func (m *Manager) writeDefaultConfig(cfgPath string) error {
	if err := os.MkdirAll(m.confDir, dirPerm); err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		m.log.Debug().Str("path", cfgPath).Msg("Keeping existing configuration")
		return nil
	}

	m.log.Info().Str("path", cfgPath).Msg("Writing default configuration")

	return os.WriteFile(cfgPath, []byte(sampleConfig), filePerm)
}

func (m *Manager) systemctl(ctx context.Context, args ...string) error {
	m.log.Debug().Strs("args", args).Msg("Running systemctl")

	out, err := m.run(ctx, "systemctl", args...)
	if err != nil {
		return errFactory.WithData(errors.ErrOperationFailed, struct {
			Args   []string
			Output string
			Error  string
		}{
			Args:   args,
			Output: strings.TrimSpace(string(out)),
			Error:  err.Error(),
		})
	}

	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
