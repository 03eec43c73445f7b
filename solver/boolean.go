package solver

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/window"
	"golang.org/x/sync/errgroup"
)

// BooleanSolver combines two sub-conditions by re-entering a solver for each
// side.
type BooleanSolver struct {
	inner core.Solver
	cfg   Config
	log   logging.Logger
}

// NewBooleanSolver returns a BooleanSolver that solves branches with inner.
func NewBooleanSolver(inner core.Solver, cfg Config, log logging.Logger) *BooleanSolver {
	return &BooleanSolver{inner: inner, cfg: cfg, log: logging.OrNoop(log)}
}

func (s *BooleanSolver) Name() string { return "boolean" }

func (s *BooleanSolver) CanSolve(cond core.Condition) bool {
	c := cond.Constraint()
	return c != nil && c.Shape() == core.CompareToOtherConstraint
}

func (s *BooleanSolver) Solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error) {
	c := cond.Constraint()
	op := c.Operator()
	if !op.Logical() {
		return nil, fmt.Errorf("%w: %s between two constraints", core.ErrUnsupportedOperation, op)
	}
	left, lok := c.Left().(core.Condition)
	right, rok := c.Right().(core.Condition)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: boolean node with non-condition operands", core.ErrUnsupportedOperation)
	}

	var (
		res *window.Window
		err error
	)
	if s.cfg.ParallelBranches {
		res, err = s.solveParallel(ctx, op, left, right, w)
	} else {
		res, err = s.solveSequential(ctx, op, left, right, w)
	}
	if err != nil {
		return nil, err
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	if cond.Inverted() {
		res = window.Difference(w, res)
	}
	return res, nil
}

// solveSequential narrows the second search with the first result: & looks
// for right only where left holds, | only where it does not.
func (s *BooleanSolver) solveSequential(ctx context.Context, op core.Operator, left, right core.Condition, w *window.Window) (*window.Window, error) {
	lw, err := s.inner.Solve(ctx, left, w)
	if err != nil {
		return nil, err
	}

	switch op {
	case core.OpAnd:
		if lw.IsEmpty() {
			return window.New(), nil
		}
		rw, err := s.inner.Solve(ctx, right, lw)
		if err != nil {
			return nil, err
		}
		return window.Intersect(lw, rw), nil
	default:
		rest := window.Difference(w, lw)
		if rest.IsEmpty() {
			return lw, nil
		}
		rw, err := s.inner.Solve(ctx, right, rest)
		if err != nil {
			return nil, err
		}
		return window.Union(lw, rw), nil
	}
}

// solveParallel solves both branches over w concurrently.
func (s *BooleanSolver) solveParallel(ctx context.Context, op core.Operator, left, right core.Condition, w *window.Window) (*window.Window, error) {
	var lw, rw *window.Window
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lw, err = s.inner.Solve(gctx, left, w)
		return err
	})
	g.Go(func() error {
		var err error
		rw, err = s.inner.Solve(gctx, right, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "parallel branches finished",
		logging.Int("left_intervals", lw.Len()),
		logging.Int("right_intervals", rw.Len()),
	)
	if op == core.OpAnd {
		return window.Intersect(lw, rw), nil
	}
	return window.Union(lw, rw), nil
}
