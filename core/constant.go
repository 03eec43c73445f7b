package core

import (
	"fmt"

	"github.com/signalsfoundry/trajectory-segmenter/units"
)

// Constant is a fixed quantity or discrete value that ignores time.
type Constant struct {
	q        units.Quantity
	kind     Kind
	discrete OccultationType
}

// NewConstant returns a scalar constant in unit u.
func NewConstant(v float64, u units.Unit) *Constant {
	return &Constant{q: units.Q(v, u), kind: KindScalar}
}

// OccultationConstant returns a discrete constant holding o.
func OccultationConstant(o OccultationType) *Constant {
	return &Constant{q: units.Q(float64(o), units.Dimensionless), kind: KindDiscrete, discrete: o}
}

// ConstantOf wraps a literal as a Constant. Numbers are dimensionless.
func ConstantOf(v any) (*Constant, error) {
	switch x := v.(type) {
	case *Constant:
		return x, nil
	case float64:
		return NewConstant(x, units.Dimensionless), nil
	case float32:
		return NewConstant(float64(x), units.Dimensionless), nil
	case int:
		return NewConstant(float64(x), units.Dimensionless), nil
	case int64:
		return NewConstant(float64(x), units.Dimensionless), nil
	case units.Quantity:
		return NewConstant(x.Value, x.Unit), nil
	case OccultationType:
		return OccultationConstant(x), nil
	default:
		return nil, fmt.Errorf("%w: cannot use %T as a constant", ErrInvalidArgument, v)
	}
}

// Quantity returns the constant's magnitude and unit.
func (c *Constant) Quantity() units.Quantity { return c.q }

// Occultation returns the discrete value of an occultation constant.
func (c *Constant) Occultation() OccultationType { return c.discrete }

func (c *Constant) Name() string     { return "constant" }
func (c *Constant) Unit() units.Unit { return c.q.Unit }
func (c *Constant) Kind() Kind       { return c.kind }

func (c *Constant) ValueAt(float64) (Value, error) {
	if c.kind == KindDiscrete {
		return OccultationValue(c.discrete), nil
	}
	return ScalarValue(c.q.Value), nil
}

func (c *Constant) DescribeInto(cfg Config) error {
	cfg[KeyReferenceValue] = c.q.Value
	cfg[KeyReferenceUnit] = c.q.Unit
	if c.kind == KindDiscrete {
		cfg[KeyReferenceDiscrete] = c.discrete
	}
	return nil
}

func (c *Constant) String() string {
	if c.kind == KindDiscrete {
		return c.discrete.String()
	}
	return c.q.String()
}

// withUnit reinterprets a dimensionless constant in u.
func (c *Constant) withUnit(u units.Unit) *Constant {
	return &Constant{q: units.Q(c.q.Value, u), kind: c.kind, discrete: c.discrete}
}

// UnitAdaptor presents a scalar parent in another, compatible unit.
type UnitAdaptor struct {
	parent Property
	unit   units.Unit
}

// As converts p into unit u. It fails with a ModelError when the units are
// not compatible.
func As(p Property, u units.Unit) (*UnitAdaptor, error) {
	if p.Kind() != KindScalar {
		return nil, modelErr(ErrNotScalar, "only scalar properties can change unit", p, nil)
	}
	if !p.Unit().CompatibleWith(u) {
		return nil, &ModelError{
			Reason:    ErrIncompatibleUnits,
			Detail:    fmt.Sprintf("cannot express %s in %s", p.Unit(), u),
			Left:      p.String(),
			LeftUnit:  p.Unit().String(),
			RightUnit: u.String(),
		}
	}
	return &UnitAdaptor{parent: p, unit: u}, nil
}

// Parent returns the adapted property.
func (a *UnitAdaptor) Parent() Property { return a.parent }

func (a *UnitAdaptor) Name() string     { return a.parent.Name() }
func (a *UnitAdaptor) Unit() units.Unit { return a.unit }
func (a *UnitAdaptor) Kind() Kind       { return KindScalar }

func (a *UnitAdaptor) ValueAt(t float64) (Value, error) {
	v, err := a.parent.ValueAt(t)
	if err != nil {
		return Value{}, err
	}
	v.Scalar, err = units.Convert(v.Scalar, a.parent.Unit(), a.unit)
	return v, err
}

// DescribeInto delegates to the parent; strategies work in the parent's
// native unit and convert the reference value instead.
func (a *UnitAdaptor) DescribeInto(cfg Config) error { return a.parent.DescribeInto(cfg) }

func (a *UnitAdaptor) String() string { return fmt.Sprintf("%s [%s]", a.parent, a.unit) }
