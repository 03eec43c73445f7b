package solver

import (
	"errors"
	"fmt"
)

// Defaults applied by DefaultConfig.
const (
	DefaultStep         = 3600.0 // seconds
	DefaultTolerance    = 1e-3   // seconds
	DefaultMaxIntervals = 100000
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid solver config")

// Config controls every search a Dispatcher runs.
type Config struct {
	// Step is the coarse search step in seconds. Features shorter than Step
	// may be missed.
	Step float64
	// Tolerance is the convergence tolerance of boundary refinement, in
	// seconds.
	Tolerance float64
	// MaxIntervals bounds the number of intervals one search may produce.
	MaxIntervals int
	// MinIntervalSize drops result intervals shorter than this many seconds
	// after each dispatch. Zero keeps everything.
	MinIntervalSize float64
	// ParallelBranches solves both sides of a boolean combination over the
	// full window concurrently instead of narrowing the second search.
	ParallelBranches bool
	// Reporter receives search progress. It must be safe for concurrent use
	// when ParallelBranches is set.
	Reporter Reporter
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Step:         DefaultStep,
		Tolerance:    DefaultTolerance,
		MaxIntervals: DefaultMaxIntervals,
		Reporter:     NopReporter{},
	}
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	switch {
	case c.Step <= 0:
		return fmt.Errorf("%w: step must be positive, got %v", ErrInvalidConfig, c.Step)
	case c.Tolerance <= 0:
		return fmt.Errorf("%w: tolerance must be positive, got %v", ErrInvalidConfig, c.Tolerance)
	case c.Tolerance >= c.Step:
		return fmt.Errorf("%w: tolerance %v must be below step %v", ErrInvalidConfig, c.Tolerance, c.Step)
	case c.MaxIntervals <= 0:
		return fmt.Errorf("%w: max intervals must be positive, got %d", ErrInvalidConfig, c.MaxIntervals)
	case c.MinIntervalSize < 0:
		return fmt.Errorf("%w: min interval size must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) reporter() Reporter {
	if c.Reporter == nil {
		return NopReporter{}
	}
	return c.Reporter
}
