package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"codeberg.org/mutker/powerctl/internal/activity"
	"codeberg.org/mutker/powerctl/internal/config"
	"codeberg.org/mutker/powerctl/internal/errors"
	"codeberg.org/mutker/powerctl/internal/logger"
	"codeberg.org/mutker/powerctl/internal/metrics"
	"codeberg.org/mutker/powerctl/internal/pid"
	"codeberg.org/mutker/powerctl/internal/power"
	"codeberg.org/mutker/powerctl/internal/service"
	"codeberg.org/mutker/powerctl/internal/sysmon"
)

const switchTimeout = 30 * time.Second

// version is stamped by the build
var version = "dev"

var (
	cfg        *config.Config
	errFactory = errors.New()
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if cfg.LogFile != "" {
		if err := logger.AddFileOutput(cfg.LogFile, logger.IsService()); err != nil {
			logger.Warn().Err(err).Str("path", cfg.LogFile).Msg("Continuing without file logging")
		}
	}
}

func main() {
	if cfg.ShowVersion {
		fmt.Printf("powerctl %s\n", version)
		return
	}

	if cfg.Install || cfg.Uninstall || cfg.ServiceStatus {
		os.Exit(serviceAction())
	}

	// Switching power modes needs root; monitor mode does not.
	if os.Geteuid() != 0 && !cfg.Monitor {
		logger.FatalWithCode(errFactory.New(errors.ErrRootRequired)).
			Msg("Run as root, or pass --monitor to observe without switching")
	}

	if err := run(); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
		os.Exit(1)
	}
}

func run() error {
	logger.Info().Str("version", version).Msg("Starting powerctl")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove PID file")
		}
	}()

	source, err := sysmon.New(cfg.Source, logger.Default())
	if err != nil {
		return err
	}
	defer closeSource(source)

	collector, err := metrics.NewService(metricsConfig(), logger.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close metrics collector")
		}
	}()

	var controller power.Controller
	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging load state without switching...")
	} else {
		backend, err := power.New(cfg.Backend, logger.Default())
		if err != nil {
			return err
		}
		controller = power.WithRateLimit(backend, power.DefaultRateLimit, power.DefaultRateWindow, logger.Default())
		logger.Info().Str("backend", backend.Name()).Msg("Power backend selected")
	}

	monitor := activity.New(source, logger.Default())
	if err := monitor.SetThresholds(cfg.PerformanceThreshold, cfg.PowersaveThreshold); err != nil {
		return err
	}
	if err := monitor.SetFrequency(cfg.Interval); err != nil {
		return err
	}
	if err := monitor.SetCallback(transitionHandler(ctx, controller)); err != nil {
		return err
	}
	if err := monitor.SetObserver(sampleRecorder(ctx, collector, source)); err != nil {
		return err
	}

	if err := monitor.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	monitor.Stop()
	logger.Info().Msg("Exiting...")

	return nil
}

// transitionHandler switches the power backend whenever the monitor
// reports a state change. In monitor mode the controller is nil and
// transitions are only logged.
func transitionHandler(ctx context.Context, controller power.Controller) activity.Callback {
	return func(active bool) {
		if controller == nil {
			return
		}

		opCtx, cancel := context.WithTimeout(ctx, switchTimeout)
		defer cancel()

		var err error
		if active {
			err = controller.SetPerformanceMode(opCtx)
		} else {
			err = controller.SetPowersaveMode(opCtx)
		}
		if err != nil {
			logger.Error().Err(err).Bool("active", active).Msg("Power mode switch failed")
		}
	}
}

// sampleRecorder feeds every evaluated sample to the metrics collector.
// With metrics disabled the collector is a no-op.
func sampleRecorder(ctx context.Context, collector metrics.MetricsCollector, source sysmon.Source) activity.Observer {
	return func(sample activity.Sample, dec activity.Decision) {
		mode := power.ModePowersave
		if dec.Active {
			mode = power.ModePerformance
		}

		snapshot := &metrics.MetricsSnapshot{
			Timestamp: sample.Timestamp,
			Source:    source.Name(),
			Load:      metrics.LoadMetrics{Value: sample.Load, CoreCount: source.CoreCount()},
			State: metrics.StateMetrics{
				Active:     dec.Active,
				Transition: dec.Changed,
				Suppressed: dec.Suppressed,
				PowerMode:  string(mode),
			},
		}

		if err := collector.Record(ctx, snapshot); err != nil {
			logger.Warn().Err(err).Msg("Failed to record sample")
		}
	}
}

func serviceAction() int {
	mgr := service.NewManager(logger.Default())
	if !mgr.IsAvailable() {
		logger.ErrorWithCode(errFactory.New(errors.ErrUnavailable)).
			Msg("systemd is required for service management")
		return 1
	}

	ctx := context.Background()

	if cfg.ServiceStatus {
		status, err := mgr.Status(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to query service status")
			return 1
		}
		fmt.Println(status)

		return 0
	}

	if os.Geteuid() != 0 {
		logger.ErrorWithCode(errFactory.New(errors.ErrRootRequired)).
			Msg("Service installation requires root")
		return 1
	}

	if cfg.Install {
		binPath, err := os.Executable()
		if err != nil {
			logger.Error().Err(err).Msg("failed to locate own executable")
			return 1
		}
		if err := mgr.Install(ctx, binPath); err != nil {
			logger.Error().Err(err).Msg("service installation failed")
			return 1
		}

		return 0
	}

	if err := mgr.Uninstall(ctx); err != nil {
		logger.Error().Err(err).Msg("service removal failed")
		return 1
	}

	return 0
}

func metricsConfig() metrics.Config {
	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics
	if cfg.MetricsDB != "" {
		mcfg.DBPath = cfg.MetricsDB
	}

	return mcfg
}

func closeSource(source sysmon.Source) {
	if closer, ok := source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close load source")
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
