// Package core holds the expression tree of time-dependent properties and the
// constraints built from them.
//
// A Property evaluates to a Value at a time (ET seconds). Comparing a property
// with a constant, or combining two constraints, yields a Constraint whose
// Shape decides which strategy can solve it. Graphs are immutable once built
// and may be shared between concurrent solves.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/units"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// Property is a quantity that can be evaluated at any time.
type Property interface {
	fmt.Stringer
	// Name is the property tag strategies dispatch on.
	Name() string
	Unit() units.Unit
	Kind() Kind
	// ValueAt evaluates the property at ET t. It has no side effects.
	ValueAt(t float64) (Value, error)
	// DescribeInto writes the flat parameters a strategy needs.
	DescribeInto(cfg Config) error
}

// VectorProperty is a property producing 3-vectors.
type VectorProperty interface {
	Property
	ComponentNames() [3]string
	ComponentUnits() [3]units.Unit
}

// Solver solves a condition over a confinement window.
type Solver interface {
	Solve(ctx context.Context, cond Condition, w *window.Window) (*window.Window, error)
}

// ValuesAt evaluates p at every time in ts, one value per input.
func ValuesAt(p Property, ts []float64) ([]Value, error) {
	out := make([]Value, len(ts))
	for i, t := range ts {
		v, err := p.ValueAt(t)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s at %v: %w", p.Name(), t, err)
		}
		out[i] = v
	}
	return out, nil
}

// Aberration is an aberration-correction mode.
type Aberration string

const (
	AbcorrNone Aberration = "NONE"
	AbcorrLT   Aberration = "LT"
	AbcorrLTS  Aberration = "LT+S"
	AbcorrCN   Aberration = "CN"
	AbcorrCNS  Aberration = "CN+S"
	AbcorrXLT  Aberration = "XLT"
	AbcorrXLTS Aberration = "XLT+S"
	AbcorrXCN  Aberration = "XCN"
	AbcorrXCNS Aberration = "XCN+S"
)

// ParseAberration normalises a correction name; "" means NONE.
func ParseAberration(s string) (Aberration, error) {
	a := Aberration(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "")))
	switch a {
	case "":
		return AbcorrNone, nil
	case AbcorrNone, AbcorrLT, AbcorrLTS, AbcorrCN, AbcorrCNS, AbcorrXLT, AbcorrXLTS, AbcorrXCN, AbcorrXCNS:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown aberration correction %q", ErrInvalidArgument, s)
	}
}

// DefaultFrame is used when an observation names no frame.
const DefaultFrame = "J2000"

// Observation names who looks at what, in which frame and with which
// aberration correction.
type Observation struct {
	Observer   string
	Target     string
	Frame      string
	Aberration Aberration
}

func (o Observation) normalized() Observation {
	o.Observer = strings.ToUpper(strings.TrimSpace(o.Observer))
	o.Target = strings.ToUpper(strings.TrimSpace(o.Target))
	if o.Frame == "" {
		o.Frame = DefaultFrame
	}
	if o.Aberration == "" {
		o.Aberration = AbcorrNone
	}
	return o
}

// Quantity tags, used both as property names and as engine request kinds.
const (
	QuantityDistance          = "distance"
	QuantityPhaseAngle        = "phase_angle"
	QuantityAngularSeparation = "angular_separation"
	QuantityRangeRate         = "range_rate"
	QuantityIlluminationAngle = "illumination_angle"
	QuantityAngularSize       = "angular_size"
	QuantityCoordinate        = "coordinate"
	QuantityPosition          = "position"
	QuantityOccultation       = "occultation"
)

// QuantityRequest asks an Evaluator for one quantity.
type QuantityRequest struct {
	Quantity    string
	Observation Observation
	// Target2 is the second body of an angular separation.
	Target2 string
	// Illuminator is the light source for phase and illumination angles.
	Illuminator string
	Shape1      BodyShape
	Shape2      BodyShape
	AngleType   IlluminationKind
}

// Evaluator is the engine's pointwise evaluation contract.
type Evaluator interface {
	EvaluateQuantity(req QuantityRequest, t float64) (Value, error)
	EvaluateOccultation(g OccultationGeometry, t float64) (OccultationType, error)
}

// BodyShape models a body for angular separation and occultation geometry.
type BodyShape string

const (
	ShapePoint     BodyShape = "POINT"
	ShapeSphere    BodyShape = "SPHERE"
	ShapeEllipsoid BodyShape = "ELLIPSOID"
)

// IlluminationKind selects the angle reported by IlluminationAngle.
type IlluminationKind string

const (
	IlluminationPhase     IlluminationKind = "PHASE"
	IlluminationIncidence IlluminationKind = "INCIDENCE"
	IlluminationEmission  IlluminationKind = "EMISSION"
)
