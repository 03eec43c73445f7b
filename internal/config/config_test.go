package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/trajectory-segmenter/solver"
)

func defaults(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := defaults(t)

	want := Config{
		Solver: SolverSettings{
			Step:         solver.DefaultStep,
			Tolerance:    solver.DefaultTolerance,
			MaxIntervals: solver.DefaultMaxIntervals,
		},
		Progress: ProgressOff,
		Log:      LogSettings{Level: "info", Format: "text"},
		Tracing: TracingSettings{
			ServiceName: "trajectory-segmenter",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
		Server: ServerSettings{ListenAddress: ":50061", MetricsAddress: ":9464"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{"step", "SEGMENTER_SOLVER_STEP", "60", func(c Config) any { return c.Solver.Step }, 60.0},
		{"parallel", "SEGMENTER_SOLVER_PARALLEL_BRANCHES", "true", func(c Config) any { return c.Solver.ParallelBranches }, true},
		{"progress", "SEGMENTER_PROGRESS", "LOG", func(c Config) any { return c.Progress }, ProgressLog},
		{"log level", "SEGMENTER_LOG_LEVEL", "debug", func(c Config) any { return c.Log.Level }, "debug"},
		{"listen", "SEGMENTER_SERVER_LISTEN_ADDRESS", "127.0.0.1:9000", func(c Config) any { return c.Server.ListenAddress }, "127.0.0.1:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envVal)
			t.Chdir(t.TempDir())
			v, err := New("")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			cfg, err := Load(v)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := tt.field(cfg); got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segmenter.yaml")
	body := "solver:\n  step: 120\n  min_interval_size: 5\ntracing:\n  enabled: true\n  exporter: otlp\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	v, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sc := cfg.SolverConfig()
	if sc.Step != 120 || sc.MinIntervalSize != 5 || sc.Tolerance != solver.DefaultTolerance {
		t.Fatalf("solver config = %+v", sc)
	}
	if tc := cfg.TracingConfig(); !tc.Enabled || tc.Exporter != "otlp" || tc.ServiceName != "trajectory-segmenter" {
		t.Fatalf("tracing config = %+v", tc)
	}
}

func TestNew_MissingExplicitFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"progress", func(c *Config) { c.Progress = "fancy" }},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }},
		{"step", func(c *Config) { c.Solver.Step = 0 }},
		{"tolerance above step", func(c *Config) { c.Solver.Tolerance = c.Solver.Step * 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}
