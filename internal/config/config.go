package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/powerctl/internal/errors"
	"codeberg.org/mutker/powerctl/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults and validation bounds. Thresholds are per-core load
// fractions; the engine scales them by the core count.
const (
	DefaultInterval             = 10
	DefaultPerformanceThreshold = 0.70
	DefaultPowersaveThreshold   = 0.30
	DefaultSource               = "auto"
	DefaultBackend              = "auto"
	DefaultLogLevel             = "info"
	DefaultMetricsDB            = "/var/lib/powerctl/metrics.db"

	MinInterval             = 1
	MaxInterval             = 300
	MinPerformanceThreshold = 0.10
	MaxPerformanceThreshold = 1.00
	MinPowersaveThreshold   = 0.05
	MaxPowersaveThreshold   = 0.90
)

type Config struct {
	Interval             int     `mapstructure:"interval"`
	PerformanceThreshold float64 `mapstructure:"performance_threshold"`
	PowersaveThreshold   float64 `mapstructure:"powersave_threshold"`
	Source               string  `mapstructure:"source"`
	Backend              string  `mapstructure:"backend"`
	Monitor              bool    `mapstructure:"monitor"`
	Debug                bool    `mapstructure:"debug"`
	Verbose              bool    `mapstructure:"verbose"`
	LogLevel             string  `mapstructure:"log_level"`
	LogFile              string  `mapstructure:"log_file"`
	Metrics              bool    `mapstructure:"metrics"`
	MetricsDB            string  `mapstructure:"metrics_db"`

	// Action flags, never read from the config file
	ShowVersion   bool `mapstructure:"-"`
	Install       bool `mapstructure:"-"`
	Uninstall     bool `mapstructure:"-"`
	ServiceStatus bool `mapstructure:"-"`
}

var errFactory = errors.New()

func Load(opts ...Option) (*Config, error) {
	o := &options{envPrefix: "POWERCTL", args: os.Args[1:]}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := pflag.NewFlagSet("powerctl", pflag.ContinueOnError)
	configFlag := fs.StringP("config", "c", "", "path to configuration file")
	fs.Int("interval", DefaultInterval, "seconds between load samples")
	fs.Float64("performance-threshold", DefaultPerformanceThreshold, "per-core load above which performance mode engages")
	fs.Float64("powersave-threshold", DefaultPowersaveThreshold, "per-core load below which power-saving mode engages")
	fs.String("source", DefaultSource, "load source: auto, loadavg, cpu, gpu, combined")
	fs.String("backend", DefaultBackend, "power backend: auto, tlp, governor")
	fs.Bool("monitor", false, "only monitor and log, never switch power modes")
	fs.String("log-level", DefaultLogLevel, "log level: debug, info, warning, error")
	fs.String("log-file", "", "also append logs to this file")
	fs.Bool("metrics", false, "record samples and transitions to the metrics database")
	fs.String("metrics-db", DefaultMetricsDB, "path to the metrics database")
	fs.Bool("debug", false, "enable debugging mode")
	fs.Bool("verbose", false, "enable verbose logging")
	versionFlag := fs.BoolP("version", "v", false, "print version and exit")
	installFlag := fs.Bool("install", false, "install the systemd service and exit")
	uninstallFlag := fs.Bool("uninstall", false, "remove the systemd service and exit")
	statusFlag := fs.Bool("service-status", false, "print the systemd service status and exit")

	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("performance_threshold", DefaultPerformanceThreshold)
	v.SetDefault("powersave_threshold", DefaultPowersaveThreshold)
	v.SetDefault("source", DefaultSource)
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("monitor", false)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", DefaultMetricsDB)

	// Load configuration from file
	configPath := o.configPath
	if configPath == "" {
		configPath = *configFlag
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("powerctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/powerctl")
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if configPath != "" || !notFound {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	// Override config file values with explicitly set command line flags
	fs.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	config.ShowVersion = *versionFlag
	config.Install = *installFlag
	config.Uninstall = *uninstallFlag
	config.ServiceStatus = *statusFlag

	if err := config.Validate(); err != nil {
		return nil, err
	}

	applyLogLevel(config)

	return config, nil
}

// Validate checks all values against their documented ranges.
func (c *Config) Validate() error {
	if c.Interval < MinInterval || c.Interval > MaxInterval {
		return validationFailure("interval", c.Interval, "must be between 1 and 300 seconds")
	}

	if c.PerformanceThreshold < MinPerformanceThreshold || c.PerformanceThreshold > MaxPerformanceThreshold {
		return validationFailure("performance_threshold", c.PerformanceThreshold, "must be between 0.10 and 1.00")
	}

	if c.PowersaveThreshold < MinPowersaveThreshold || c.PowersaveThreshold > MaxPowersaveThreshold {
		return validationFailure("powersave_threshold", c.PowersaveThreshold, "must be between 0.05 and 0.90")
	}

	if c.PowersaveThreshold >= c.PerformanceThreshold {
		return validationFailure("powersave_threshold", c.PowersaveThreshold,
			"must be less than performance_threshold")
	}

	switch c.Source {
	case "auto", "loadavg", "cpu", "gpu", "combined":
	default:
		return validationFailure("source", c.Source, "must be one of auto, loadavg, cpu, gpu, combined")
	}

	switch c.Backend {
	case "auto", "tlp", "governor":
	default:
		return validationFailure("backend", c.Backend, "must be one of auto, tlp, governor")
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

func validationFailure(field string, value interface{}, reason string) error {
	return errFactory.Wrap(errors.ErrInvalidConfig, &validationError{
		field:  field,
		value:  value,
		reason: reason,
	})
}

// Set log level based on config. Debug and verbose flags outrank the
// log_level key.
func applyLogLevel(c *Config) {
	level := c.LogLevel
	if c.Debug {
		level = "debug"
	} else if c.Verbose {
		level = "info"
	}

	// Cannot fail: Validate already checked the name
	_ = logger.SetLevelByName(level)
}
