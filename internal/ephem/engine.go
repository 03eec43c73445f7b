// Package ephem is a self-contained geometry engine: a registry of bodies
// with analytic or SGP4 motion, pointwise evaluation of the observation
// quantities and the step-and-refine searches the solver strategies
// delegate to.
//
// All vectors are inertial (J2000) and in km. Bodies are spheres of their
// mean radius; ellipsoid shapes are approximated by that sphere.
package ephem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

var (
	// ErrUnsupportedFrame is returned for frames other than J2000.
	ErrUnsupportedFrame = errors.New("unsupported reference frame")
	// ErrUnsupportedQuantity is returned for quantities the engine cannot
	// compute.
	ErrUnsupportedQuantity = errors.New("unsupported quantity")
)

// Engine evaluates observation geometry over a body registry. It is safe for
// concurrent use.
type Engine struct {
	bodies *Bodies
	log    logging.Logger
}

// NewEngine returns an engine over bodies.
func NewEngine(bodies *Bodies, log logging.Logger) *Engine {
	if bodies == nil {
		bodies = NewBodies()
	}
	return &Engine{bodies: bodies, log: logging.OrNoop(log)}
}

// Bodies returns the registry the engine reads.
func (e *Engine) Bodies() *Bodies { return e.bodies }

// sight is the view of one target from one observer.
type sight struct {
	// rel is the apparent observer-to-target vector and relVel its rate.
	rel, relVel Vec3
	// observer and target are inertial positions; target is taken at the
	// light-time corrected epoch.
	observer, target Vec3
	targetET         float64
	lightTime        float64
}

func checkFrame(frame string) error {
	switch strings.ToUpper(strings.TrimSpace(frame)) {
	case "", core.DefaultFrame:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFrame, frame)
	}
}

// look computes the apparent position of target from observer at et.
func (e *Engine) look(observer, target string, et float64, ab core.Aberration) (sight, error) {
	obs, err := e.bodies.StateAt(observer, et)
	if err != nil {
		return sight{}, err
	}
	tgt, err := e.bodies.StateAt(target, et)
	if err != nil {
		return sight{}, err
	}

	mode := strings.ToUpper(string(ab))
	transmit := strings.HasPrefix(mode, "X")
	iterations := 0
	switch strings.TrimPrefix(strings.TrimSuffix(mode, "+S"), "X") {
	case "LT":
		iterations = 1
	case "CN":
		iterations = 5
	}

	lt := tgt.Pos.Sub(obs.Pos).Norm() / SpeedOfLight
	at := et
	for i := 0; i < iterations; i++ {
		if transmit {
			at = et + lt
		} else {
			at = et - lt
		}
		if tgt, err = e.bodies.StateAt(target, at); err != nil {
			return sight{}, err
		}
		lt = tgt.Pos.Sub(obs.Pos).Norm() / SpeedOfLight
	}

	rel := tgt.Pos.Sub(obs.Pos)
	if strings.HasSuffix(mode, "+S") {
		// first-order stellar aberration
		sign := 1.0
		if transmit {
			sign = -1
		}
		r := rel.Norm()
		rel = rel.Add(obs.Vel.Scale(sign * r / SpeedOfLight)).Unit().Scale(r)
	}
	return sight{
		rel:       rel,
		relVel:    tgt.Vel.Sub(obs.Vel),
		observer:  obs.Pos,
		target:    tgt.Pos,
		targetET:  at,
		lightTime: lt,
	}, nil
}

func (e *Engine) radius(name string) (float64, error) {
	b, err := e.bodies.Get(name)
	if err != nil {
		return 0, err
	}
	return b.Radius, nil
}

// EvaluateQuantity computes one quantity at ET t.
func (e *Engine) EvaluateQuantity(req core.QuantityRequest, t float64) (core.Value, error) {
	o := req.Observation
	if err := checkFrame(o.Frame); err != nil {
		return core.Value{}, err
	}
	s, err := e.look(o.Observer, o.Target, t, o.Aberration)
	if err != nil {
		return core.Value{}, err
	}

	switch req.Quantity {
	case core.QuantityDistance:
		return core.ScalarValue(s.rel.Norm()), nil

	case core.QuantityRangeRate:
		d := s.rel.Norm()
		if d == 0 {
			return core.ScalarValue(0), nil
		}
		return core.ScalarValue(s.rel.Dot(s.relVel) / d), nil

	case core.QuantityAngularSize:
		r, err := e.radius(o.Target)
		if err != nil {
			return core.Value{}, err
		}
		return core.ScalarValue(2 * angularRadius(r, s.rel.Norm())), nil

	case core.QuantityPhaseAngle:
		illum, err := e.bodies.StateAt(req.Illuminator, s.targetET)
		if err != nil {
			return core.Value{}, err
		}
		return core.ScalarValue(Angle(s.observer.Sub(s.target), illum.Pos.Sub(s.target))), nil

	case core.QuantityIlluminationAngle:
		return e.illumination(req, s)

	case core.QuantityAngularSeparation:
		return e.separation(req, s, t)

	case core.QuantityPosition:
		return core.VectorValue(s.rel.Array()), nil

	default:
		return core.Value{}, fmt.Errorf("%w: %q", ErrUnsupportedQuantity, req.Quantity)
	}
}

// illumination evaluates the angles at the sub-observer point of a
// spherical target.
func (e *Engine) illumination(req core.QuantityRequest, s sight) (core.Value, error) {
	r, err := e.radius(req.Observation.Target)
	if err != nil {
		return core.Value{}, err
	}
	illum, err := e.bodies.StateAt(req.Illuminator, s.targetET)
	if err != nil {
		return core.Value{}, err
	}
	normal := s.observer.Sub(s.target).Unit()
	spoint := s.target.Add(normal.Scale(r))
	toSun := illum.Pos.Sub(spoint)
	toObs := s.observer.Sub(spoint)

	switch req.AngleType {
	case core.IlluminationPhase:
		return core.ScalarValue(Angle(toSun, toObs)), nil
	case core.IlluminationEmission:
		return core.ScalarValue(Angle(normal, toObs)), nil
	case core.IlluminationIncidence, "":
		return core.ScalarValue(Angle(normal, toSun)), nil
	default:
		return core.Value{}, fmt.Errorf("%w: illumination angle %q", ErrUnsupportedQuantity, req.AngleType)
	}
}

func (e *Engine) separation(req core.QuantityRequest, s1 sight, t float64) (core.Value, error) {
	o := req.Observation
	s2, err := e.look(o.Observer, req.Target2, t, o.Aberration)
	if err != nil {
		return core.Value{}, err
	}
	sep := Angle(s1.rel, s2.rel)
	for _, side := range []struct {
		name  string
		shape core.BodyShape
		d     float64
	}{
		{o.Target, req.Shape1, s1.rel.Norm()},
		{req.Target2, req.Shape2, s2.rel.Norm()},
	} {
		if side.shape == core.ShapePoint || side.shape == "" {
			continue
		}
		r, err := e.radius(side.name)
		if err != nil {
			return core.Value{}, err
		}
		sep -= angularRadius(r, side.d)
	}
	return core.ScalarValue(sep), nil
}

// EvaluateOccultation classifies the occultation of g.Back by g.Front seen
// from g.Observer at ET t.
func (e *Engine) EvaluateOccultation(g core.OccultationGeometry, t float64) (core.OccultationType, error) {
	front, err := e.look(g.Observer, g.Front, t, g.Aberration)
	if err != nil {
		return core.OccultationNone, err
	}
	back, err := e.look(g.Observer, g.Back, t, g.Aberration)
	if err != nil {
		return core.OccultationNone, err
	}
	df, db := front.rel.Norm(), back.rel.Norm()
	if df >= db {
		return core.OccultationNone, nil
	}

	var rf, rb float64
	if g.FrontShape != core.ShapePoint {
		r, err := e.radius(g.Front)
		if err != nil {
			return core.OccultationNone, err
		}
		rf = angularRadius(r, df)
	}
	if g.BackShape != core.ShapePoint {
		r, err := e.radius(g.Back)
		if err != nil {
			return core.OccultationNone, err
		}
		rb = angularRadius(r, db)
	}

	sep := Angle(front.rel, back.rel)
	switch {
	case sep >= rf+rb:
		return core.OccultationNone, nil
	case rf >= rb && sep <= rf-rb:
		return core.OccultationFull, nil
	case rb > rf && sep <= rb-rf:
		return core.OccultationAnnular, nil
	default:
		return core.OccultationPartial, nil
	}
}
