package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/units"
)

// OccultationType classifies how a front body hides a back body.
type OccultationType int

const (
	OccultationNone    OccultationType = 0
	OccultationFull    OccultationType = 1
	OccultationPartial OccultationType = 2
	OccultationAnnular OccultationType = 3
	// OccultationAny matches every type except None.
	OccultationAny OccultationType = 5
)

func (o OccultationType) String() string {
	switch o {
	case OccultationNone:
		return "NONE"
	case OccultationFull:
		return "FULL"
	case OccultationPartial:
		return "PARTIAL"
	case OccultationAnnular:
		return "ANNULAR"
	case OccultationAny:
		return "ANY"
	default:
		return fmt.Sprintf("OCCULTATION(%d)", int(o))
	}
}

// Matches compares two occultation types, treating Any as every non-None
// type.
func (o OccultationType) Matches(other OccultationType) bool {
	if o == other {
		return true
	}
	if o == OccultationAny {
		return other != OccultationNone && other != OccultationAny
	}
	if other == OccultationAny {
		return o != OccultationNone
	}
	return false
}

// ParseOccultationType accepts the type names case-insensitively.
func ParseOccultationType(s string) (OccultationType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return OccultationNone, nil
	case "FULL":
		return OccultationFull, nil
	case "PARTIAL":
		return OccultationPartial, nil
	case "ANNULAR":
		return OccultationAnnular, nil
	case "ANY":
		return OccultationAny, nil
	default:
		return 0, fmt.Errorf("%w: unknown occultation type %q", ErrInvalidArgument, s)
	}
}

// OccultationGeometry names the bodies of an occultation query.
type OccultationGeometry struct {
	Observer   string
	Front      string
	FrontShape BodyShape
	FrontFrame string
	Back       string
	BackShape  BodyShape
	BackFrame  string
	Aberration Aberration
}

func (g OccultationGeometry) normalized() OccultationGeometry {
	up := func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	g.Observer, g.Front, g.Back = up(g.Observer), up(g.Front), up(g.Back)
	if g.FrontShape == "" {
		g.FrontShape = ShapeEllipsoid
	}
	if g.BackShape == "" {
		g.BackShape = ShapeEllipsoid
	}
	if g.FrontFrame == "" {
		g.FrontFrame = "IAU_" + g.Front
	}
	if g.BackFrame == "" {
		g.BackFrame = "IAU_" + g.Back
	}
	if g.Aberration == "" {
		g.Aberration = AbcorrNone
	}
	return g
}

// Occultation reports which occultation of Back by Front the observer sees.
type Occultation struct {
	eval Evaluator
	geom OccultationGeometry
}

// NewOccultation returns an occultation property.
func NewOccultation(eval Evaluator, g OccultationGeometry) *Occultation {
	return &Occultation{eval: eval, geom: g.normalized()}
}

// Geometry returns the normalised geometry.
func (o *Occultation) Geometry() OccultationGeometry { return o.geom }

func (o *Occultation) Name() string     { return QuantityOccultation }
func (o *Occultation) Unit() units.Unit { return units.Dimensionless }
func (o *Occultation) Kind() Kind       { return KindDiscrete }

func (o *Occultation) ValueAt(t float64) (Value, error) {
	if o.eval == nil {
		return Value{}, ErrNoEvaluator
	}
	typ, err := o.eval.EvaluateOccultation(o.geom, t)
	if err != nil {
		return Value{}, err
	}
	return OccultationValue(typ), nil
}

func (o *Occultation) DescribeInto(cfg Config) error {
	cfg[KeyProperty] = QuantityOccultation
	cfg[KeyPropertyUnit] = units.Dimensionless
	cfg[KeyObserver] = o.geom.Observer
	cfg[KeyFront] = o.geom.Front
	cfg[KeyFrontShape] = string(o.geom.FrontShape)
	cfg[KeyFrontFrame] = o.geom.FrontFrame
	cfg[KeyBack] = o.geom.Back
	cfg[KeyBackShape] = string(o.geom.BackShape)
	cfg[KeyBackFrame] = o.geom.BackFrame
	cfg[KeyAberration] = string(o.geom.Aberration)
	return nil
}

func (o *Occultation) String() string {
	return fmt.Sprintf("occultation(%s by %s from %s)", o.geom.Back, o.geom.Front, o.geom.Observer)
}
