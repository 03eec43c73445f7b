package core

import (
	"fmt"
	"strconv"

	"github.com/signalsfoundry/trajectory-segmenter/units"
)

// Kind classifies the values a property produces.
type Kind int

const (
	KindScalar Kind = iota
	KindBoolean
	KindVector
	KindDiscrete
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindBoolean:
		return "boolean"
	case KindVector:
		return "vector"
	case KindDiscrete:
		return "discrete"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the result of evaluating a property at one time. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind     Kind
	Scalar   float64
	Bool     bool
	Vector   [3]float64
	Discrete int
}

func ScalarValue(v float64) Value    { return Value{Kind: KindScalar, Scalar: v} }
func BoolValue(b bool) Value         { return Value{Kind: KindBoolean, Bool: b} }
func VectorValue(v [3]float64) Value { return Value{Kind: KindVector, Vector: v} }
func DiscreteValue(d int) Value      { return Value{Kind: KindDiscrete, Discrete: d} }

// OccultationValue wraps an occultation type as a discrete value.
func OccultationValue(o OccultationType) Value { return DiscreteValue(int(o)) }

// Occultation interprets a discrete value as an occultation type.
func (v Value) Occultation() OccultationType { return OccultationType(v.Discrete) }

func (v Value) String() string {
	switch v.Kind {
	case KindScalar:
		return strconv.FormatFloat(v.Scalar, 'g', 10, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindVector:
		return fmt.Sprintf("[%g, %g, %g]", v.Vector[0], v.Vector[1], v.Vector[2])
	case KindDiscrete:
		return v.Occultation().String()
	default:
		return "?"
	}
}

// Config is the flat description a property graph writes for a strategy.
type Config map[string]any

// Keys written by DescribeInto.
const (
	KeyProperty          = "property"
	KeyPropertyUnit      = "property_unit"
	KeyReferenceValue    = "reference_value"
	KeyReferenceUnit     = "reference_value_unit"
	KeyReferenceDiscrete = "reference_discrete"
	KeyOperator          = "operator"
	KeyExtremum          = "extremum"
	KeyAdjust            = "adjust"
	KeyTarget            = "target"
	KeyTarget2           = "target2"
	KeyObserver          = "observer"
	KeyIlluminator       = "illuminator"
	KeyAberration        = "abcorr"
	KeyFrame             = "frame"
	KeyShape1            = "shape1"
	KeyShape2            = "shape2"
	KeyAngleType         = "angle_type"
	KeyCoordinateSystem  = "coordinate_system"
	KeyComponent         = "component"
	KeyVectorDefinition  = "vector_definition"
	KeyMethod            = "method"
	KeyEllipsoid         = "ellipsoid"
	KeyFront             = "front"
	KeyFrontShape        = "front_shape"
	KeyFrontFrame        = "front_frame"
	KeyBack              = "back"
	KeyBackShape         = "back_shape"
	KeyBackFrame         = "back_frame"
)

// String returns the string stored under key, or "".
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Float returns the float64 stored under key.
func (c Config) Float(key string) (float64, bool) {
	f, ok := c[key].(float64)
	return f, ok
}

// Unit returns the unit stored under key.
func (c Config) Unit(key string) (units.Unit, bool) {
	u, ok := c[key].(units.Unit)
	return u, ok
}

// Has reports whether key is set.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}
