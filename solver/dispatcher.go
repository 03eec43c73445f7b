package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/window"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/trajectory-segmenter/solver"

// Solve outcomes reported to MetricsRecorder.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeCancelled  = "cancelled"
	OutcomeUnsolvable = "unsolvable"
)

// MetricsRecorder observes finished dispatches.
type MetricsRecorder interface {
	ObserveSolve(strategy, outcome string, elapsed time.Duration, intervals int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSolve(string, string, time.Duration, int) {}

// Dispatcher picks the first strategy able to solve a condition and runs it.
// It implements core.Solver. Boolean strategies re-enter it for their
// branches through branchSolver, which skips the minimum-size filter.
type Dispatcher struct {
	engine     Engine
	cfg        Config
	log        logging.Logger
	metrics    MetricsRecorder
	tracer     trace.Tracer
	extra      []Strategy
	strategies []Strategy
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option { return func(d *Dispatcher) { d.cfg = cfg } }

// WithLogger sets the logger used by the dispatcher and its strategies.
func WithLogger(l logging.Logger) Option { return func(d *Dispatcher) { d.log = logging.OrNoop(l) } }

// WithMetrics records every dispatch in m.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option { return func(d *Dispatcher) { d.tracer = t } }

// WithStrategies registers strategies tried before the built-in ones.
func WithStrategies(s ...Strategy) Option {
	return func(d *Dispatcher) { d.extra = append(d.extra, s...) }
}

// NewDispatcher builds a dispatcher with the built-in strategies in priority
// order: event, occultation, boolean.
func NewDispatcher(engine Engine, opts ...Option) (*Dispatcher, error) {
	if engine == nil {
		return nil, errors.New("solver: nil engine")
	}
	d := &Dispatcher{
		engine:  engine,
		cfg:     DefaultConfig(),
		log:     logging.Noop(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	d.strategies = append(d.strategies, d.extra...)
	d.strategies = append(d.strategies,
		NewEventSolver(engine, d.cfg, d.log),
		NewOccultationSolver(engine, d.cfg, d.log),
		NewBooleanSolver(branchSolver{d}, d.cfg, d.log),
	)
	return d, nil
}

// Config returns the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.cfg }

// Engine returns the engine strategies delegate to.
func (d *Dispatcher) Engine() Engine { return d.engine }

// Strategies lists strategies in the order they are tried.
func (d *Dispatcher) Strategies() []Strategy { return append([]Strategy(nil), d.strategies...) }

// Select returns the first strategy whose CanSolve accepts cond.
func (d *Dispatcher) Select(cond core.Condition) (Strategy, error) {
	for _, s := range d.strategies {
		if s.CanSolve(cond) {
			return s, nil
		}
	}
	if cond == nil {
		return nil, fmt.Errorf("%w: nil condition", ErrUnsolvable)
	}
	if c := cond.Constraint(); c != nil && c.Shape() == core.CompareToConstant {
		if err := c.DescribeInto(core.Config{}); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnsolvable, cond, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsolvable, cond)
}

// branchSolver solves the operands of a boolean node. Their results are
// combined before the minimum-size filter applies.
type branchSolver struct{ d *Dispatcher }

func (b branchSolver) Solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error) {
	return b.d.solve(ctx, cond, w)
}

// Solve finds the sub-windows of w where cond holds, then drops intervals
// shorter than MinIntervalSize.
func (d *Dispatcher) Solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error) {
	res, err := d.solve(ctx, cond, w)
	if err != nil {
		return nil, err
	}
	if d.cfg.MinIntervalSize > 0 {
		res.RemoveSmallIntervals(d.cfg.MinIntervalSize)
	}
	return res, nil
}

func (d *Dispatcher) solve(ctx context.Context, cond core.Condition, w *window.Window) (*window.Window, error) {
	if cond == nil {
		return nil, fmt.Errorf("%w: nil condition", ErrUnsolvable)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: nil confinement window", core.ErrInvalidArgument)
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	strategy, err := d.Select(cond)
	if err != nil {
		d.metrics.ObserveSolve("none", OutcomeUnsolvable, 0, 0)
		d.log.Warn(ctx, "no strategy for condition", logging.String("condition", cond.String()))
		return nil, err
	}
	if w.IsEmpty() {
		return window.New(), nil
	}

	ctx, span := d.tracer.Start(ctx, "solver."+strategy.Name(), trace.WithAttributes(
		attribute.String("segmenter.strategy", strategy.Name()),
		attribute.String("segmenter.condition", cond.String()),
		attribute.Bool("segmenter.inverted", cond.Inverted()),
		attribute.Int("segmenter.confinement_intervals", w.Len()),
	))
	defer span.End()

	if c := cond.Constraint(); c.Degraded() {
		d.log.Warn(ctx, "solving degraded constraint with strict operator",
			logging.String("requested", c.RequestedOperator()),
			logging.String("applied", c.Operator().String()),
		)
	}

	start := time.Now()
	res, err := strategy.Solve(ctx, cond, w)
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, ErrCancelled) {
			outcome = OutcomeCancelled
		}
		d.metrics.ObserveSolve(strategy.Name(), outcome, elapsed, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.metrics.ObserveSolve(strategy.Name(), OutcomeOK, elapsed, res.Len())
	span.SetAttributes(
		attribute.Int("segmenter.result_intervals", res.Len()),
		attribute.Float64("segmenter.result_measure_s", res.Measure()),
	)
	d.log.Debug(ctx, "condition solved",
		logging.String("strategy", strategy.Name()),
		logging.Int("intervals", res.Len()),
		logging.Duration("elapsed", elapsed),
	)
	return res, nil
}
