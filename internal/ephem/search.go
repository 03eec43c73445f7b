package ephem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// ErrResultOverflow is returned when a search produces more intervals than
// its MaxIntervals.
var ErrResultOverflow = errors.New("search result exceeds interval capacity")

// minTolerance applies when a request carries no tolerance.
const minTolerance = 1e-6

type crossing struct {
	t  float64
	to bool
}

// scanner walks a confinement window with a coarse step and refines every
// change of a boolean predicate by bisection.
type scanner struct {
	ctl   solver.SearchControl
	tol   float64
	total float64
	done  float64
}

func newScanner(ctl solver.SearchControl) *scanner {
	if ctl.Step == nil {
		ctl.Step = solver.ConstantStep(solver.DefaultStep)
	}
	if ctl.Refine == nil {
		ctl.Refine = solver.Bisect
	}
	if ctl.Reporter == nil {
		ctl.Reporter = solver.NopReporter{}
	}
	tol := ctl.Tolerance
	if tol <= 0 {
		tol = minTolerance
	}
	return &scanner{ctl: ctl, tol: tol, total: ctl.Confinement.Measure()}
}

func (sc *scanner) cancelled() error {
	if sc.ctl.Cancelled != nil && sc.ctl.Cancelled() {
		return solver.ErrCancelled
	}
	return nil
}

func (sc *scanner) advance(dt float64) {
	if sc.total <= 0 {
		return
	}
	sc.done += dt
	sc.ctl.Reporter.OnSearchProgress(math.Min(sc.done/sc.total, 1))
}

func (sc *scanner) newWindow() *window.Window {
	if sc.ctl.MaxIntervals > 0 {
		return window.New(window.WithCapacity(sc.ctl.MaxIntervals))
	}
	return window.New()
}

// insert adds [start, end] to w, skipping degenerate intervals.
func (sc *scanner) insert(w *window.Window, start, end float64) error {
	if end <= start {
		return nil
	}
	if err := w.Insert(start, end); err != nil {
		if errors.Is(err, window.ErrCapacityExceeded) {
			return fmt.Errorf("%w: %w", ErrResultOverflow, err)
		}
		return err
	}
	return nil
}

// insertPoint adds an interval one tolerance wide centred on t, clipped to
// iv.
func (sc *scanner) insertPoint(w *window.Window, t float64, iv window.Interval) error {
	return sc.insert(w, math.Max(t-sc.tol/2, iv.Start), math.Min(t+sc.tol/2, iv.End))
}

// crossings returns the predicate state at iv.Start and every state change
// inside iv.
func (sc *scanner) crossings(iv window.Interval, pred func(float64) (bool, error)) (bool, []crossing, error) {
	t := iv.Start
	s, err := pred(t)
	if err != nil {
		return false, nil, err
	}
	initial := s
	var out []crossing
	for t < iv.End {
		if err := sc.cancelled(); err != nil {
			return false, nil, err
		}
		step := sc.ctl.Step(t)
		if step <= 0 || math.IsNaN(step) {
			return false, nil, fmt.Errorf("%w: step %v at %v", solver.ErrInvalidConfig, step, t)
		}
		next := math.Min(t+step, iv.End)
		sn, err := pred(next)
		if err != nil {
			return false, nil, err
		}
		if sn != s {
			c, err := sc.refine(t, next, s, sn, pred)
			if err != nil {
				return false, nil, err
			}
			out = append(out, crossing{t: c, to: sn})
		}
		sc.advance(next - t)
		t, s = next, sn
	}
	return initial, out, nil
}

func (sc *scanner) refine(t1, t2 float64, s1, s2 bool, pred func(float64) (bool, error)) (float64, error) {
	for t2-t1 > sc.tol {
		m := sc.ctl.Refine(t1, t2, s1, s2)
		if !(m > t1 && m < t2) {
			m = t1 + (t2-t1)/2
		}
		sm, err := pred(m)
		if err != nil {
			return 0, err
		}
		if sm == s1 {
			t1 = m
		} else {
			t2, s2 = m, sm
		}
	}
	return t1 + (t2-t1)/2, nil
}

// where returns the sub-window on which pred holds.
func (sc *scanner) where(pred func(float64) (bool, error)) (*window.Window, error) {
	out := sc.newWindow()
	for _, iv := range sc.ctl.Confinement.Intervals() {
		initial, cs, err := sc.crossings(iv, pred)
		if err != nil {
			return nil, err
		}
		open, isOpen := iv.Start, initial
		for _, c := range cs {
			if c.to {
				open, isOpen = c.t, true
				continue
			}
			if isOpen {
				if err := sc.insert(out, open, c.t); err != nil {
					return nil, err
				}
			}
			isOpen = false
		}
		if isOpen {
			if err := sc.insert(out, open, iv.End); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// points returns tolerance-wide intervals around every crossing of pred
// accepted by keep.
func (sc *scanner) points(pred func(float64) (bool, error), keep func(to bool) bool) (*window.Window, []float64, error) {
	out := sc.newWindow()
	var times []float64
	for _, iv := range sc.ctl.Confinement.Intervals() {
		_, cs, err := sc.crossings(iv, pred)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range cs {
			if !keep(c.to) {
				continue
			}
			times = append(times, c.t)
			if err := sc.insertPoint(out, c.t, iv); err != nil {
				return nil, nil, err
			}
		}
	}
	return out, times, nil
}

// scalarFunc builds the quantity evaluated by a scalar search.
func (e *Engine) scalarFunc(p solver.EventParams) (func(float64) (float64, error), error) {
	str := func(name string) string { v, _ := p.String(name); return v }
	obs := core.Observation{
		Observer:   str(solver.ParamObserver),
		Target:     str(solver.ParamTarget),
		Frame:      str(solver.ParamFrame),
		Aberration: core.Aberration(str(solver.ParamAbcorr)),
	}
	scalar := func(req core.QuantityRequest) func(float64) (float64, error) {
		return func(t float64) (float64, error) {
			v, err := e.EvaluateQuantity(req, t)
			return v.Scalar, err
		}
	}

	switch p.Quantity {
	case "DISTANCE":
		return scalar(core.QuantityRequest{Quantity: core.QuantityDistance, Observation: obs}), nil
	case "RANGE RATE":
		return scalar(core.QuantityRequest{Quantity: core.QuantityRangeRate, Observation: obs}), nil
	case "ANGULAR SIZE":
		return scalar(core.QuantityRequest{Quantity: core.QuantityAngularSize, Observation: obs}), nil
	case "PHASE ANGLE":
		return scalar(core.QuantityRequest{
			Quantity:    core.QuantityPhaseAngle,
			Observation: obs,
			Illuminator: str(solver.ParamIlluminator),
		}), nil
	case "ILLUMINATION ANGLE":
		return scalar(core.QuantityRequest{
			Quantity:    core.QuantityIlluminationAngle,
			Observation: obs,
			Illuminator: str(solver.ParamIlluminator),
			AngleType:   core.IlluminationKind(str(solver.ParamAngleType)),
		}), nil
	case "ANGULAR SEPARATION":
		obs.Target = str(solver.ParamTarget1)
		return scalar(core.QuantityRequest{
			Quantity:    core.QuantityAngularSeparation,
			Observation: obs,
			Target2:     str(solver.ParamTarget2),
			Shape1:      core.BodyShape(str(solver.ParamShape1)),
			Shape2:      core.BodyShape(str(solver.ParamShape2)),
		}), nil
	case "COORDINATE":
		return e.coordinateFunc(p, obs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuantity, p.Quantity)
	}
}

func (e *Engine) coordinateFunc(p solver.EventParams, obs core.Observation) (func(float64) (float64, error), error) {
	sysName, _ := p.String(solver.ParamCoordinateSystem)
	sys, err := core.ParseCoordinateSystem(sysName)
	if err != nil {
		return nil, err
	}
	component, _ := p.String(solver.ParamCoordinate)
	idx := -1
	for i, n := range sys.ComponentNames() {
		if strings.EqualFold(n, component) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s has no component %q", ErrUnsupportedQuantity, sys, component)
	}
	var ell core.Ellipsoid
	if f, ok := p.Floats(solver.ParamEllipsoid); ok && len(f) == 2 {
		ell = core.Ellipsoid{EquatorialRadius: f[0], Flattening: f[1]}
	}
	obs.Frame, _ = p.String(solver.ParamReferenceFrame)
	req := core.QuantityRequest{Quantity: core.QuantityPosition, Observation: obs}

	return func(t float64) (float64, error) {
		v, err := e.EvaluateQuantity(req, t)
		if err != nil {
			return 0, err
		}
		c, err := core.ConvertCoordinates(sys, v.Vector, ell)
		if err != nil {
			return 0, err
		}
		return c[idx], nil
	}, nil
}

// SearchScalar finds the times a scalar quantity satisfies the requested
// relation.
func (e *Engine) SearchScalar(ctx context.Context, req solver.ScalarSearch) (*window.Window, error) {
	if req.Confinement == nil || req.Confinement.IsEmpty() {
		return window.New(), nil
	}
	f, err := e.scalarFunc(req.Params)
	if err != nil {
		return nil, err
	}
	p := req.Params
	sc := newScanner(req.SearchControl)
	label := fmt.Sprintf("%s %s %g", strings.ToLower(p.Quantity), p.Operator, p.RefValue)
	sc.ctl.Reporter.OnSearchStart(label)
	defer sc.ctl.Reporter.OnSearchEnd()

	e.log.Debug(ctx, "scalar search started",
		logging.String("search", label),
		logging.Int("confinement_intervals", req.Confinement.Len()),
	)

	var res *window.Window
	switch p.Operator {
	case solver.RelationGreater:
		res, err = sc.where(func(t float64) (bool, error) {
			v, err := f(t)
			return v > p.RefValue, err
		})
	case solver.RelationLess:
		res, err = sc.where(func(t float64) (bool, error) {
			v, err := f(t)
			return v < p.RefValue, err
		})
	case solver.RelationEqual:
		res, _, err = sc.points(func(t float64) (bool, error) {
			v, err := f(t)
			return v > p.RefValue, err
		}, func(bool) bool { return true })
	case solver.RelationLocMax, solver.RelationLocMin:
		wantRise := p.Operator == solver.RelationLocMin
		res, _, err = sc.points(increasing(f, sc.tol), func(to bool) bool { return to == wantRise })
	case solver.RelationAbsMax, solver.RelationAbsMin:
		res, err = e.absolute(sc, f, p)
	default:
		return nil, fmt.Errorf("%w: relation %q", core.ErrUnsupportedOperation, p.Operator)
	}
	if err != nil {
		return nil, err
	}
	e.log.Debug(ctx, "scalar search finished",
		logging.String("search", label),
		logging.Int("intervals", res.Len()),
	)
	return res, nil
}

// increasing reports whether f rises through t, from a central difference
// of half-width h.
func increasing(f func(float64) (float64, error), h float64) func(float64) (bool, error) {
	return func(t float64) (bool, error) {
		a, err := f(t - h)
		if err != nil {
			return false, err
		}
		b, err := f(t + h)
		if err != nil {
			return false, err
		}
		return b > a, nil
	}
}

// absolute searches the absolute extremum over the whole confinement. With
// a zero adjust it returns the extremum itself; otherwise every time the
// quantity is within adjust of it.
func (e *Engine) absolute(sc *scanner, f func(float64) (float64, error), p solver.EventParams) (*window.Window, error) {
	wantMax := p.Operator == solver.RelationAbsMax
	if p.Adjust != 0 {
		// progress spans both passes over the confinement
		sc.total *= 2
	}
	_, candidates, err := sc.points(increasing(f, sc.tol), func(to bool) bool { return to != wantMax })
	if err != nil {
		return nil, err
	}
	type candidate struct {
		t  float64
		iv window.Interval
	}
	var all []candidate
	for _, iv := range sc.ctl.Confinement.Intervals() {
		all = append(all, candidate{iv.Start, iv}, candidate{iv.End, iv})
		for _, c := range candidates {
			if iv.Contains(c) {
				all = append(all, candidate{c, iv})
			}
		}
	}

	best := math.Inf(-1)
	if !wantMax {
		best = math.Inf(1)
	}
	bestAt := all[0]
	for _, c := range all {
		v, err := f(c.t)
		if err != nil {
			return nil, err
		}
		if (wantMax && v > best) || (!wantMax && v < best) {
			best, bestAt = v, c
		}
	}

	if p.Adjust == 0 {
		out := sc.newWindow()
		if err := sc.insertPoint(out, bestAt.t, bestAt.iv); err != nil {
			return nil, err
		}
		return out, nil
	}

	if wantMax {
		threshold := best - p.Adjust
		return sc.where(func(t float64) (bool, error) {
			v, err := f(t)
			return v > threshold, err
		})
	}
	threshold := best + p.Adjust
	return sc.where(func(t float64) (bool, error) {
		v, err := f(t)
		return v < threshold, err
	})
}

// SearchOccultation finds the times an occultation of the requested type is
// in progress.
func (e *Engine) SearchOccultation(ctx context.Context, req solver.OccultationSearch) (*window.Window, error) {
	if req.Confinement == nil || req.Confinement.IsEmpty() {
		return window.New(), nil
	}
	for _, name := range []string{req.Geometry.Observer, req.Geometry.Front, req.Geometry.Back} {
		if _, err := e.bodies.Get(name); err != nil {
			return nil, err
		}
	}
	sc := newScanner(req.SearchControl)
	label := fmt.Sprintf("occultation %s of %s by %s", req.Type, req.Geometry.Back, req.Geometry.Front)
	sc.ctl.Reporter.OnSearchStart(label)
	defer sc.ctl.Reporter.OnSearchEnd()

	res, err := sc.where(func(t float64) (bool, error) {
		got, err := e.EvaluateOccultation(req.Geometry, t)
		return req.Type.Matches(got), err
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug(ctx, "occultation search finished",
		logging.String("search", label),
		logging.Int("intervals", res.Len()),
	)
	return res, nil
}
