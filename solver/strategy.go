package solver

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

var (
	// ErrUnsolvable is returned when no strategy accepts a condition.
	ErrUnsolvable = errors.New("no strategy can solve condition")
	// ErrCancelled is returned when the context ends during a solve. No
	// partial window accompanies it.
	ErrCancelled = errors.New("solve cancelled")
)

// Strategy solves one family of condition shapes.
type Strategy interface {
	Name() string
	// CanSolve is a cheap capability check with no side effects.
	CanSolve(cond core.Condition) bool
	Solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error)
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// control assembles the shared search settings for one engine call.
func control(ctx context.Context, cfg Config, w *window.Window) SearchControl {
	return SearchControl{
		Confinement:  w,
		Step:         ConstantStep(cfg.Step),
		Refine:       Bisect,
		Tolerance:    cfg.Tolerance,
		MaxIntervals: cfg.MaxIntervals,
		Reporter:     cfg.reporter(),
		Cancelled:    func() bool { return ctx.Err() != nil },
	}
}

// finish applies cancellation and inversion to an engine result.
func finish(ctx context.Context, cond core.Condition, w, res *window.Window, err error) (*window.Window, error) {
	if cerr := cancelled(ctx); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	if cond.Inverted() {
		res = window.Difference(w, res)
	}
	return res, nil
}

// describe returns the flat description of a compare-to-constant condition,
// or nil when it has none.
func describe(cond core.Condition) core.Config {
	c := cond.Constraint()
	if c == nil || c.Shape() != core.CompareToConstant {
		return nil
	}
	cfg := core.Config{}
	if err := c.DescribeInto(cfg); err != nil {
		return nil
	}
	return cfg
}
