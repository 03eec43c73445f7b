package solver

import (
	"context"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// EventSolver solves scalar comparisons and extremum searches with the
// engine's scalar search.
type EventSolver struct {
	engine Engine
	cfg    Config
	log    logging.Logger
}

// NewEventSolver returns an EventSolver.
func NewEventSolver(engine Engine, cfg Config, log logging.Logger) *EventSolver {
	return &EventSolver{engine: engine, cfg: cfg, log: logging.OrNoop(log)}
}

func (s *EventSolver) Name() string { return "event" }

func (s *EventSolver) CanSolve(cond core.Condition) bool {
	cfg := describe(cond)
	if cfg == nil {
		return false
	}
	_, ok := eventQuantities[cfg.String(core.KeyProperty)]
	return ok
}

func (s *EventSolver) Solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error) {
	cfg := core.Config{}
	if err := cond.Constraint().DescribeInto(cfg); err != nil {
		return nil, err
	}
	params, err := BuildEventParams(cfg)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "scalar search",
		logging.String("quantity", params.Quantity),
		logging.String("relation", params.Operator),
		logging.Float("reference", params.RefValue),
		logging.String("unit", params.Unit.String()),
		logging.Float("adjust", params.Adjust),
		logging.Int("confinement_intervals", w.Len()),
		logging.Bool("inverted", cond.Inverted()),
	)

	res, err := s.engine.SearchScalar(ctx, ScalarSearch{
		SearchControl: control(ctx, s.cfg, w),
		Params:        params,
	})
	return finish(ctx, cond, w, res, err)
}
