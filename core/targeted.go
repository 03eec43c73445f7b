package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/units"
)

// targeted is the shared state of observer/target quantities.
type targeted struct {
	eval Evaluator
	obs  Observation
}

func (q targeted) evaluate(req QuantityRequest, t float64) (Value, error) {
	if q.eval == nil {
		return Value{}, ErrNoEvaluator
	}
	req.Observation = q.obs
	return q.eval.EvaluateQuantity(req, t)
}

func (q targeted) describe(cfg Config, name string, unit units.Unit) {
	cfg[KeyProperty] = name
	cfg[KeyPropertyUnit] = unit
	cfg[KeyTarget] = q.obs.Target
	cfg[KeyObserver] = q.obs.Observer
	cfg[KeyFrame] = q.obs.Frame
	cfg[KeyAberration] = string(q.obs.Aberration)
}

// Observation returns the normalised observation.
func (q targeted) Observation() Observation { return q.obs }

// Distance is the range from observer to target, in km.
type Distance struct{ targeted }

func NewDistance(eval Evaluator, obs Observation) *Distance {
	return &Distance{targeted{eval: eval, obs: obs.normalized()}}
}

func (d *Distance) Name() string     { return QuantityDistance }
func (d *Distance) Unit() units.Unit { return units.Kilometer }
func (d *Distance) Kind() Kind       { return KindScalar }

func (d *Distance) ValueAt(t float64) (Value, error) {
	return d.evaluate(QuantityRequest{Quantity: QuantityDistance}, t)
}

func (d *Distance) DescribeInto(cfg Config) error {
	d.describe(cfg, QuantityDistance, d.Unit())
	return nil
}

func (d *Distance) String() string {
	return fmt.Sprintf("distance(%s from %s)", d.obs.Target, d.obs.Observer)
}

// RangeRate is the rate of change of the observer-target distance, in km/s.
type RangeRate struct{ targeted }

func NewRangeRate(eval Evaluator, obs Observation) *RangeRate {
	return &RangeRate{targeted{eval: eval, obs: obs.normalized()}}
}

func (r *RangeRate) Name() string     { return QuantityRangeRate }
func (r *RangeRate) Unit() units.Unit { return units.KmPerSec }
func (r *RangeRate) Kind() Kind       { return KindScalar }

func (r *RangeRate) ValueAt(t float64) (Value, error) {
	return r.evaluate(QuantityRequest{Quantity: QuantityRangeRate}, t)
}

func (r *RangeRate) DescribeInto(cfg Config) error {
	r.describe(cfg, QuantityRangeRate, r.Unit())
	return nil
}

func (r *RangeRate) String() string {
	return fmt.Sprintf("range_rate(%s from %s)", r.obs.Target, r.obs.Observer)
}

// AngularSize is the apparent angular diameter of the target, in radians.
type AngularSize struct{ targeted }

func NewAngularSize(eval Evaluator, obs Observation) *AngularSize {
	return &AngularSize{targeted{eval: eval, obs: obs.normalized()}}
}

func (a *AngularSize) Name() string     { return QuantityAngularSize }
func (a *AngularSize) Unit() units.Unit { return units.Radian }
func (a *AngularSize) Kind() Kind       { return KindScalar }

func (a *AngularSize) ValueAt(t float64) (Value, error) {
	return a.evaluate(QuantityRequest{Quantity: QuantityAngularSize}, t)
}

func (a *AngularSize) DescribeInto(cfg Config) error {
	a.describe(cfg, QuantityAngularSize, a.Unit())
	return nil
}

func (a *AngularSize) String() string {
	return fmt.Sprintf("angular_size(%s from %s)", a.obs.Target, a.obs.Observer)
}

// DefaultIlluminator is the light source assumed by phase and illumination
// angles.
const DefaultIlluminator = "SUN"

func illuminatorOrDefault(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultIlluminator
	}
	return s
}

// PhaseAngle is the angle at the target between the observer and the
// illuminator, in radians.
type PhaseAngle struct {
	targeted
	illuminator string
}

func NewPhaseAngle(eval Evaluator, obs Observation, illuminator string) *PhaseAngle {
	return &PhaseAngle{targeted: targeted{eval: eval, obs: obs.normalized()}, illuminator: illuminatorOrDefault(illuminator)}
}

func (p *PhaseAngle) Name() string     { return QuantityPhaseAngle }
func (p *PhaseAngle) Unit() units.Unit { return units.Radian }
func (p *PhaseAngle) Kind() Kind       { return KindScalar }

func (p *PhaseAngle) ValueAt(t float64) (Value, error) {
	return p.evaluate(QuantityRequest{Quantity: QuantityPhaseAngle, Illuminator: p.illuminator}, t)
}

func (p *PhaseAngle) DescribeInto(cfg Config) error {
	p.describe(cfg, QuantityPhaseAngle, p.Unit())
	cfg[KeyIlluminator] = p.illuminator
	return nil
}

func (p *PhaseAngle) String() string {
	return fmt.Sprintf("phase_angle(%s from %s, lit by %s)", p.obs.Target, p.obs.Observer, p.illuminator)
}

// IlluminationAngle is the phase, incidence or emission angle at the
// sub-observer point of the target, in radians.
type IlluminationAngle struct {
	targeted
	illuminator string
	angle       IlluminationKind
}

func NewIlluminationAngle(eval Evaluator, obs Observation, illuminator string, angle IlluminationKind) *IlluminationAngle {
	if angle == "" {
		angle = IlluminationIncidence
	}
	return &IlluminationAngle{
		targeted:    targeted{eval: eval, obs: obs.normalized()},
		illuminator: illuminatorOrDefault(illuminator),
		angle:       IlluminationKind(strings.ToUpper(string(angle))),
	}
}

func (i *IlluminationAngle) Name() string     { return QuantityIlluminationAngle }
func (i *IlluminationAngle) Unit() units.Unit { return units.Radian }
func (i *IlluminationAngle) Kind() Kind       { return KindScalar }

func (i *IlluminationAngle) ValueAt(t float64) (Value, error) {
	return i.evaluate(QuantityRequest{
		Quantity:    QuantityIlluminationAngle,
		Illuminator: i.illuminator,
		AngleType:   i.angle,
	}, t)
}

func (i *IlluminationAngle) DescribeInto(cfg Config) error {
	i.describe(cfg, QuantityIlluminationAngle, i.Unit())
	cfg[KeyIlluminator] = i.illuminator
	cfg[KeyAngleType] = string(i.angle)
	cfg[KeyMethod] = "ELLIPSOID"
	return nil
}

func (i *IlluminationAngle) String() string {
	return fmt.Sprintf("illumination_angle(%s of %s from %s)", strings.ToLower(string(i.angle)), i.obs.Target, i.obs.Observer)
}

// AngularSeparation is the angle between two targets seen from the observer,
// in radians. With sphere shapes the limb-to-limb separation is reported.
type AngularSeparation struct {
	targeted
	target2        string
	shape1, shape2 BodyShape
}

func NewAngularSeparation(eval Evaluator, obs Observation, target2 string, shape1, shape2 BodyShape) *AngularSeparation {
	if shape1 == "" {
		shape1 = ShapePoint
	}
	if shape2 == "" {
		shape2 = ShapePoint
	}
	return &AngularSeparation{
		targeted: targeted{eval: eval, obs: obs.normalized()},
		target2:  strings.ToUpper(strings.TrimSpace(target2)),
		shape1:   shape1,
		shape2:   shape2,
	}
}

func (a *AngularSeparation) Name() string     { return QuantityAngularSeparation }
func (a *AngularSeparation) Unit() units.Unit { return units.Radian }
func (a *AngularSeparation) Kind() Kind       { return KindScalar }

func (a *AngularSeparation) ValueAt(t float64) (Value, error) {
	return a.evaluate(QuantityRequest{
		Quantity: QuantityAngularSeparation,
		Target2:  a.target2,
		Shape1:   a.shape1,
		Shape2:   a.shape2,
	}, t)
}

func (a *AngularSeparation) DescribeInto(cfg Config) error {
	a.describe(cfg, QuantityAngularSeparation, a.Unit())
	cfg[KeyTarget2] = a.target2
	cfg[KeyShape1] = string(a.shape1)
	cfg[KeyShape2] = string(a.shape2)
	return nil
}

func (a *AngularSeparation) String() string {
	return fmt.Sprintf("angular_separation(%s and %s from %s)", a.obs.Target, a.target2, a.obs.Observer)
}
