package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/units"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// Operator is a constraint operator.
type Operator int

const (
	OpGreater Operator = iota
	OpLess
	OpEqual
	OpAnd
	OpOr
)

var operatorSymbols = [...]string{
	OpGreater: ">",
	OpLess:    "<",
	OpEqual:   "==",
	OpAnd:     "&",
	OpOr:      "|",
}

func (op Operator) String() string {
	if int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Logical reports whether op combines two conditions.
func (op Operator) Logical() bool { return op == OpAnd || op == OpOr }

// mirror returns the operator that keeps the comparison true when both
// operands swap sides.
func (op Operator) mirror() Operator {
	switch op {
	case OpGreater:
		return OpLess
	case OpLess:
		return OpGreater
	default:
		return op
	}
}

// ParseOperator maps a symbol to an Operator. ">=" and "<=" are reported as
// degraded to their strict forms.
func ParseOperator(s string) (op Operator, degraded bool, err error) {
	switch strings.TrimSpace(s) {
	case ">":
		return OpGreater, false, nil
	case "<":
		return OpLess, false, nil
	case "==", "=":
		return OpEqual, false, nil
	case "&", "and", "AND":
		return OpAnd, false, nil
	case "|", "or", "OR":
		return OpOr, false, nil
	case ">=":
		return OpGreater, true, nil
	case "<=":
		return OpLess, true, nil
	default:
		return 0, false, fmt.Errorf("%w: unknown operator %q", ErrInvalidArgument, s)
	}
}

type comparator func(l, r Value) (bool, error)

// operatorTable implements pointwise evaluation for every operator.
var operatorTable = map[Operator]comparator{
	OpGreater: func(l, r Value) (bool, error) {
		if l.Kind != KindScalar || r.Kind != KindScalar {
			return false, fmt.Errorf("%w: > on %s and %s", ErrUnsupportedOperation, l.Kind, r.Kind)
		}
		return l.Scalar > r.Scalar, nil
	},
	OpLess: func(l, r Value) (bool, error) {
		if l.Kind != KindScalar || r.Kind != KindScalar {
			return false, fmt.Errorf("%w: < on %s and %s", ErrUnsupportedOperation, l.Kind, r.Kind)
		}
		return l.Scalar < r.Scalar, nil
	},
	OpEqual: func(l, r Value) (bool, error) {
		if l.Kind != r.Kind {
			return false, fmt.Errorf("%w: == on %s and %s", ErrUnsupportedOperation, l.Kind, r.Kind)
		}
		switch l.Kind {
		case KindScalar:
			return l.Scalar == r.Scalar, nil
		case KindBoolean:
			return l.Bool == r.Bool, nil
		case KindDiscrete:
			return l.Occultation().Matches(r.Occultation()), nil
		default:
			return l.Vector == r.Vector, nil
		}
	},
	OpAnd: func(l, r Value) (bool, error) {
		if l.Kind != KindBoolean || r.Kind != KindBoolean {
			return false, fmt.Errorf("%w: & on %s and %s", ErrUnsupportedOperation, l.Kind, r.Kind)
		}
		return l.Bool && r.Bool, nil
	},
	OpOr: func(l, r Value) (bool, error) {
		if l.Kind != KindBoolean || r.Kind != KindBoolean {
			return false, fmt.Errorf("%w: | on %s and %s", ErrUnsupportedOperation, l.Kind, r.Kind)
		}
		return l.Bool || r.Bool, nil
	},
}

// Shape is the structural class of a constraint.
type Shape int

const (
	ShapeUnknown Shape = iota
	CompareToConstant
	CompareToOtherConstraint
)

func (s Shape) String() string {
	switch s {
	case CompareToConstant:
		return "compare_to_constant"
	case CompareToOtherConstraint:
		return "compare_to_other_constraint"
	default:
		return "unknown"
	}
}

// Condition is a boolean node of a constraint tree: a Constraint or an
// Inverted wrapper around one.
type Condition interface {
	Property
	// Constraint returns the innermost constraint.
	Constraint() *Constraint
	// Inverted reports whether an odd number of inversions wrap Constraint.
	Inverted() bool
}

// Constraint compares a property with a constant, or combines two
// conditions. Build one with a Builder.
type Constraint struct {
	left      Property
	right     Property
	op        Operator
	shape     Shape
	degraded  bool
	requested string
}

func (c *Constraint) Left() Property     { return c.left }
func (c *Constraint) Right() Property    { return c.right }
func (c *Constraint) Operator() Operator { return c.op }
func (c *Constraint) Shape() Shape       { return c.shape }

// Degraded reports whether a non-strict operator was replaced by its strict
// form.
func (c *Constraint) Degraded() bool { return c.degraded }

// RequestedOperator is the operator symbol the caller asked for.
func (c *Constraint) RequestedOperator() string {
	if c.requested != "" {
		return c.requested
	}
	return c.op.String()
}

func (c *Constraint) Constraint() *Constraint { return c }
func (c *Constraint) Inverted() bool          { return false }

func (c *Constraint) Name() string     { return "constraint" }
func (c *Constraint) Unit() units.Unit { return units.Dimensionless }
func (c *Constraint) Kind() Kind       { return KindBoolean }

// ValueAt evaluates both sides at t and applies the operator.
func (c *Constraint) ValueAt(t float64) (Value, error) {
	if _, ok := c.left.(*LocalExtremum); ok {
		return Value{}, fmt.Errorf("%w: extremum constraints can only be solved, not evaluated", ErrUnsupportedOperation)
	}
	l, err := c.left.ValueAt(t)
	if err != nil {
		return Value{}, err
	}
	r, err := c.right.ValueAt(t)
	if err != nil {
		return Value{}, err
	}
	if l.Kind == KindScalar && r.Kind == KindScalar && !c.left.Unit().Equal(c.right.Unit()) {
		r.Scalar, err = units.Convert(r.Scalar, c.right.Unit(), c.left.Unit())
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrIncompatibleUnits, err)
		}
	}
	apply, ok := operatorTable[c.op]
	if !ok {
		return Value{}, fmt.Errorf("%w: operator %s", ErrUnsupportedOperation, c.op)
	}
	b, err := apply(l, r)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(b), nil
}

// DescribeInto writes the flat description of a compare-to-constant
// constraint.
func (c *Constraint) DescribeInto(cfg Config) error {
	if c.shape != CompareToConstant {
		return fmt.Errorf("%w: %s constraints have no flat description", ErrUnsupportedOperation, c.shape)
	}
	if err := c.left.DescribeInto(cfg); err != nil {
		return err
	}
	if err := c.right.DescribeInto(cfg); err != nil {
		return err
	}
	cfg[KeyOperator] = c.op.String()
	return nil
}

// Solve solves the constraint over w with s.
func (c *Constraint) Solve(ctx context.Context, s Solver, w *window.Window) (*window.Window, error) {
	return s.Solve(ctx, c, w)
}

func (c *Constraint) String() string {
	return fmt.Sprintf("(%s %s %s)", c.left, c.RequestedOperator(), c.right)
}

// Inverted negates a condition.
type Inverted struct {
	inner Condition
}

// Not returns the negation of c.
func Not(c Condition) *Inverted { return &Inverted{inner: c} }

// Inner returns the negated condition.
func (i *Inverted) Inner() Condition { return i.inner }

func (i *Inverted) Constraint() *Constraint { return i.inner.Constraint() }
func (i *Inverted) Inverted() bool          { return !i.inner.Inverted() }

func (i *Inverted) Name() string     { return i.inner.Name() }
func (i *Inverted) Unit() units.Unit { return units.Dimensionless }
func (i *Inverted) Kind() Kind       { return KindBoolean }

func (i *Inverted) ValueAt(t float64) (Value, error) {
	v, err := i.inner.ValueAt(t)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(!v.Bool), nil
}

func (i *Inverted) DescribeInto(cfg Config) error { return i.inner.DescribeInto(cfg) }

// Solve solves the negated condition over w with s.
func (i *Inverted) Solve(ctx context.Context, s Solver, w *window.Window) (*window.Window, error) {
	return s.Solve(ctx, i, w)
}

func (i *Inverted) String() string { return fmt.Sprintf("~%s", i.inner) }

// ExtremumMode selects the extremum an extremum search looks for.
type ExtremumMode string

const (
	LocalMaximum    ExtremumMode = "LOCMAX"
	LocalMinimum    ExtremumMode = "LOCMIN"
	AbsoluteMaximum ExtremumMode = "ABSMAX"
	AbsoluteMinimum ExtremumMode = "ABSMIN"
)

// ParseExtremumMode accepts mode names case-insensitively.
func ParseExtremumMode(s string) (ExtremumMode, error) {
	m := ExtremumMode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case LocalMaximum, LocalMinimum, AbsoluteMaximum, AbsoluteMinimum:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown extremum mode %q", ErrInvalidArgument, s)
	}
}

// Absolute reports whether the mode searches the absolute extremum.
func (m ExtremumMode) Absolute() bool { return m == AbsoluteMaximum || m == AbsoluteMinimum }

// LocalExtremum marks a scalar property for extremum search.
type LocalExtremum struct {
	parent Property
	mode   ExtremumMode
	adjust float64
}

// Parent returns the searched property.
func (e *LocalExtremum) Parent() Property { return e.parent }

// Mode returns the extremum mode.
func (e *LocalExtremum) Mode() ExtremumMode { return e.mode }

// Adjust returns the tolerance band below (above) an absolute maximum
// (minimum), in the parent's unit.
func (e *LocalExtremum) Adjust() float64 { return e.adjust }

func (e *LocalExtremum) Name() string     { return e.parent.Name() }
func (e *LocalExtremum) Unit() units.Unit { return e.parent.Unit() }
func (e *LocalExtremum) Kind() Kind       { return KindScalar }

func (e *LocalExtremum) ValueAt(t float64) (Value, error) { return e.parent.ValueAt(t) }

func (e *LocalExtremum) DescribeInto(cfg Config) error {
	if err := e.parent.DescribeInto(cfg); err != nil {
		return err
	}
	cfg[KeyExtremum] = string(e.mode)
	cfg[KeyAdjust] = units.Q(e.adjust, e.Unit())
	return nil
}

func (e *LocalExtremum) String() string {
	return fmt.Sprintf("%s(%s)", strings.ToLower(string(e.mode)), e.parent)
}
