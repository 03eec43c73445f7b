package solver

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// OccultationSolver solves "occultation == TYPE" with the engine's
// occultation search.
type OccultationSolver struct {
	engine Engine
	cfg    Config
	log    logging.Logger
}

// NewOccultationSolver returns an OccultationSolver.
func NewOccultationSolver(engine Engine, cfg Config, log logging.Logger) *OccultationSolver {
	return &OccultationSolver{engine: engine, cfg: cfg, log: logging.OrNoop(log)}
}

func (s *OccultationSolver) Name() string { return "occultation" }

func (s *OccultationSolver) CanSolve(cond core.Condition) bool {
	cfg := describe(cond)
	return cfg != nil && cfg.String(core.KeyProperty) == core.QuantityOccultation
}

// BuildOccultationSearch extracts geometry and requested type from a flat
// description.
func BuildOccultationSearch(cfg core.Config) (core.OccultationGeometry, core.OccultationType, error) {
	if op := cfg.String(core.KeyOperator); op != "==" {
		return core.OccultationGeometry{}, 0, fmt.Errorf("%w: occultations only support ==, got %q", core.ErrUnsupportedOperation, op)
	}
	typ, ok := cfg[core.KeyReferenceDiscrete].(core.OccultationType)
	if !ok {
		return core.OccultationGeometry{}, 0, fmt.Errorf("%w: occultation compared with a non-occultation value", core.ErrUnsupportedOperation)
	}
	switch typ {
	case core.OccultationAny, core.OccultationFull, core.OccultationPartial, core.OccultationAnnular:
	default:
		return core.OccultationGeometry{}, 0, fmt.Errorf("%w: occultation type %s cannot be searched; negate an ANY search instead", core.ErrUnsupportedOperation, typ)
	}
	g := core.OccultationGeometry{
		Observer:   cfg.String(core.KeyObserver),
		Front:      cfg.String(core.KeyFront),
		FrontShape: core.BodyShape(cfg.String(core.KeyFrontShape)),
		FrontFrame: cfg.String(core.KeyFrontFrame),
		Back:       cfg.String(core.KeyBack),
		BackShape:  core.BodyShape(cfg.String(core.KeyBackShape)),
		BackFrame:  cfg.String(core.KeyBackFrame),
		Aberration: core.Aberration(cfg.String(core.KeyAberration)),
	}
	return g, typ, nil
}

func (s *OccultationSolver) Solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error) {
	cfg := core.Config{}
	if err := cond.Constraint().DescribeInto(cfg); err != nil {
		return nil, err
	}
	g, typ, err := BuildOccultationSearch(cfg)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "occultation search",
		logging.String("type", typ.String()),
		logging.String("front", g.Front),
		logging.String("back", g.Back),
		logging.String("observer", g.Observer),
		logging.Bool("inverted", cond.Inverted()),
	)

	res, err := s.engine.SearchOccultation(ctx, OccultationSearch{
		SearchControl: control(ctx, s.cfg, w),
		Geometry:      g,
		Type:          typ,
	})
	return finish(ctx, cond, w, res, err)
}
