package power

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"codeberg.org/mutker/powerctl/internal/logger"
)

const (
	cpufreqRoot = "/sys/devices/system/cpu"

	governorPerformance = "performance"
	governorPowersave   = "powersave"

	governorFilePerms = 0o644
)

// Governor writes the kernel cpufreq scaling governor directly. Used
// on hosts without TLP.
type Governor struct {
	log  logger.Logger
	root string // sysfs cpu root, overridable in tests
}

func NewGovernor(log logger.Logger) *Governor {
	return &Governor{log: log, root: cpufreqRoot}
}

func (c *Governor) Name() string {
	return "governor"
}

func (c *Governor) IsAvailable() bool {
	_, err := os.Stat(filepath.Join(c.root, "cpu0", "cpufreq", "scaling_governor"))

	return err == nil
}

func (c *Governor) SetPerformanceMode(_ context.Context) error {
	return c.apply(governorPerformance)
}

func (c *Governor) SetPowersaveMode(_ context.Context) error {
	return c.apply(governorPowersave)
}

func (c *Governor) apply(governor string) error {
	available, err := c.availableGovernors()
	if err != nil {
		return err
	}

	if !slices.Contains(available, governor) {
		return errFactory.WithData(ErrGovernorUnsupported, governor)
	}

	paths, err := filepath.Glob(filepath.Join(c.root, "cpu[0-9]*", "cpufreq", "scaling_governor"))
	if err != nil {
		return errFactory.Wrap(ErrSwitchFailed, err)
	}

	if len(paths) == 0 {
		return errFactory.New(ErrSwitchFailed)
	}

	for _, path := range paths {
		if err := os.WriteFile(path, []byte(governor), governorFilePerms); err != nil {
			return errFactory.Wrap(ErrSwitchFailed, err).WithData(path)
		}
	}

	c.log.Info().Str("governor", governor).Int("cpus", len(paths)).Msg("Scaling governor applied")

	return nil
}

func (c *Governor) CurrentMode(_ context.Context) (Mode, error) {
	data, err := os.ReadFile(filepath.Join(c.root, "cpu0", "cpufreq", "scaling_governor"))
	if err != nil {
		return ModeUnknown, errFactory.Wrap(ErrStatusFailed, err)
	}

	switch strings.TrimSpace(string(data)) {
	case governorPerformance:
		return ModePerformance, nil
	case governorPowersave:
		return ModePowersave, nil
	default:
		return ModeUnknown, nil
	}
}

func (c *Governor) availableGovernors() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(c.root, "cpu0", "cpufreq", "scaling_available_governors"))
	if err != nil {
		return nil, errFactory.Wrap(ErrStatusFailed, err)
	}

	return strings.Fields(string(data)), nil
}
