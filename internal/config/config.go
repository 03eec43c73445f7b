// Package config loads runtime settings from defaults, an optional
// .segmenter.yaml file, SEGMENTER_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/observability"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
)

// EnvPrefix prefixes every environment override, e.g. SEGMENTER_SOLVER_STEP.
const EnvPrefix = "SEGMENTER"

// Progress modes.
const (
	ProgressOff = "off"
	ProgressLog = "log"
	ProgressBar = "bar"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

type SolverSettings struct {
	Step             float64 `mapstructure:"step"`
	Tolerance        float64 `mapstructure:"tolerance"`
	MinIntervalSize  float64 `mapstructure:"min_interval_size"`
	MaxIntervals     int     `mapstructure:"max_intervals"`
	ParallelBranches bool    `mapstructure:"parallel_branches"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingSettings struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type ServerSettings struct {
	ListenAddress  string `mapstructure:"listen_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// Config holds all runtime configuration.
type Config struct {
	Solver   SolverSettings  `mapstructure:"solver"`
	Progress string          `mapstructure:"progress"`
	Log      LogSettings     `mapstructure:"log"`
	Tracing  TracingSettings `mapstructure:"tracing"`
	Server   ServerSettings  `mapstructure:"server"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	def := solver.DefaultConfig()
	v.SetDefault("solver.step", def.Step)
	v.SetDefault("solver.tolerance", def.Tolerance)
	v.SetDefault("solver.min_interval_size", 0.0)
	v.SetDefault("solver.max_intervals", def.MaxIntervals)
	v.SetDefault("solver.parallel_branches", false)
	v.SetDefault("progress", ProgressOff)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "trajectory-segmenter")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("server.listen_address", ":50061")
	v.SetDefault("server.metrics_address", ":9464")
}

// New returns a viper instance reading configFile, or .segmenter.yaml from
// the working or home directory when configFile is empty. A missing default
// file is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".segmenter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Progress = strings.ToLower(strings.TrimSpace(cfg.Progress))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the solver does not check itself.
func (c Config) Validate() error {
	switch c.Progress {
	case ProgressOff, ProgressLog, ProgressBar:
	default:
		return fmt.Errorf("%w: progress must be off, log or bar, got %q", ErrInvalid, c.Progress)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing sample ratio %v outside [0, 1]", ErrInvalid, c.Tracing.SampleRatio)
	}
	if err := c.SolverConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// SolverConfig converts the solver settings. The reporter is left at its
// default; callers attach one per run.
func (c Config) SolverConfig() solver.Config {
	cfg := solver.DefaultConfig()
	cfg.Step = c.Solver.Step
	cfg.Tolerance = c.Solver.Tolerance
	cfg.MinIntervalSize = c.Solver.MinIntervalSize
	cfg.MaxIntervals = c.Solver.MaxIntervals
	cfg.ParallelBranches = c.Solver.ParallelBranches
	return cfg
}

// Logger builds the structured logger described by the log settings.
func (c Config) Logger(out io.Writer) logging.Logger {
	return logging.New(logging.Config{Level: c.Log.Level, Format: c.Log.Format, Output: out})
}

// TracingConfig converts the tracing settings.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
