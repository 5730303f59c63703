package power

import "codeberg.org/mutker/powerctl/internal/logger"

// New builds the backend named by kind: tlp, governor, or auto (TLP
// when installed, otherwise the cpufreq governor).
func New(kind string, log logger.Logger) (Controller, error) {
	switch kind {
	case "tlp":
		return NewTLP(log), nil
	case "governor":
		return NewGovernor(log), nil
	case "auto", "":
		if tlp := NewTLP(log); tlp.IsAvailable() {
			return tlp, nil
		}

		if gov := NewGovernor(log); gov.IsAvailable() {
			log.Info().Msg("TLP not installed, driving the cpufreq governor directly")
			return gov, nil
		}

		return nil, errFactory.New(ErrNoBackendAvailable)
	default:
		return nil, errFactory.WithData(ErrUnknownBackend, kind)
	}
}
