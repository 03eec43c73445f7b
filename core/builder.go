package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/units"
)

// Builder constructs constraints, classifying their shape and checking units
// once. Diagnostics are logged through its logger.
type Builder struct {
	log logging.Logger
}

// NewBuilder returns a Builder logging to log (nil discards).
func NewBuilder(log logging.Logger) *Builder {
	return &Builder{log: logging.OrNoop(log)}
}

// GT builds left > right.
func (b *Builder) GT(left, right any) (*Constraint, error) { return b.Compare(left, ">", right) }

// LT builds left < right.
func (b *Builder) LT(left, right any) (*Constraint, error) { return b.Compare(left, "<", right) }

// EQ builds left == right.
func (b *Builder) EQ(left, right any) (*Constraint, error) { return b.Compare(left, "==", right) }

// GE builds left > right and marks the constraint degraded.
func (b *Builder) GE(left, right any) (*Constraint, error) { return b.Compare(left, ">=", right) }

// LE builds left < right and marks the constraint degraded.
func (b *Builder) LE(left, right any) (*Constraint, error) { return b.Compare(left, "<=", right) }

// And builds left & right.
func (b *Builder) And(left, right Condition) (*Constraint, error) {
	return b.Compare(left, "&", right)
}

// Or builds left | right.
func (b *Builder) Or(left, right Condition) (*Constraint, error) {
	return b.Compare(left, "|", right)
}

// Compare builds a constraint from two operands and an operator symbol.
// Operands may be properties, conditions or literals accepted by ConstantOf.
func (b *Builder) Compare(left any, symbol string, right any) (*Constraint, error) {
	op, degraded, err := ParseOperator(symbol)
	if err != nil {
		return nil, &ModelError{Reason: ErrInvalidOperator, Detail: err.Error()}
	}
	l, err := asProperty(left)
	if err != nil {
		return nil, err
	}
	r, err := asProperty(right)
	if err != nil {
		return nil, err
	}
	c, err := b.build(l, op, r)
	if err != nil {
		return nil, err
	}
	if degraded {
		c.degraded = true
		c.requested = symbol
		b.log.Warn(context.Background(), "non-strict operator degraded to strict form",
			logging.String("requested", symbol),
			logging.String("applied", c.op.String()),
			logging.String("constraint", c.String()),
		)
	}
	return c, nil
}

// Extremum builds a constraint satisfied around the extrema of p. adjust is
// only meaningful for absolute modes and is expressed in p's unit.
func (b *Builder) Extremum(p Property, mode ExtremumMode, adjust float64) (*Constraint, error) {
	if _, err := ParseExtremumMode(string(mode)); err != nil {
		return nil, &ModelError{Reason: ErrInvalidArgument, Detail: err.Error(), Left: p.String()}
	}
	if p.Kind() != KindScalar {
		return nil, modelErr(ErrNotScalar, "extremum search needs a scalar property", p, nil)
	}
	if adjust < 0 {
		return nil, modelErr(ErrInvalidArgument, "adjust must not be negative", p, nil)
	}
	if adjust > 0 && !mode.Absolute() {
		return nil, modelErr(ErrInvalidArgument, "adjust only applies to absolute extrema", p, nil)
	}
	ext := &LocalExtremum{parent: p, mode: mode, adjust: adjust}
	return &Constraint{
		left:  ext,
		right: NewConstant(0, p.Unit()),
		op:    OpEqual,
		shape: CompareToConstant,
	}, nil
}

func asProperty(v any) (Property, error) {
	if p, ok := v.(Property); ok && p != nil {
		return p, nil
	}
	c, err := ConstantOf(v)
	if err != nil {
		return nil, &ModelError{Reason: ErrInvalidArgument, Detail: err.Error()}
	}
	return c, nil
}

func (b *Builder) build(left Property, op Operator, right Property) (*Constraint, error) {
	_, lConst := left.(*Constant)
	_, rConst := right.(*Constant)
	if lConst && !rConst {
		left, right = right, left
		op = op.mirror()
	}

	shape, err := classify(left, right)
	if err != nil {
		return nil, err
	}

	c := &Constraint{left: left, right: right, op: op, shape: shape}

	switch shape {
	case CompareToOtherConstraint:
		// Non-logical operators between conditions are accepted here and
		// rejected by the boolean strategy at solve time.
		return c, nil
	case CompareToConstant:
		if op.Logical() {
			e := modelErr(ErrInvalidOperator, fmt.Sprintf("%s needs two conditions", op), left, right)
			e.Shape = shape
			return nil, e
		}
		if err := b.checkOperands(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func classify(left, right Property) (Shape, error) {
	_, lCond := left.(Condition)
	_, rCond := right.(Condition)
	_, lConst := left.(*Constant)
	_, rConst := right.(*Constant)

	switch {
	case lCond && rCond:
		return CompareToOtherConstraint, nil
	case rConst && !lConst && !lCond:
		return CompareToConstant, nil
	}

	var detail string
	switch {
	case lConst && rConst:
		detail = "cannot compare two constants"
	case lCond || rCond:
		detail = "cannot compare a condition with a property or constant"
	default:
		detail = "cannot compare two properties; compare each with a constant and combine the constraints"
	}
	return ShapeUnknown, modelErr(ErrAmbiguousShape, detail, left, right)
}

func (b *Builder) checkOperands(c *Constraint) error {
	left, right := c.left, c.right.(*Constant)

	if left.Kind() == KindVector {
		e := modelErr(ErrNotScalar, "select a component before comparing a vector", left, right)
		e.Shape = c.shape
		return e
	}
	if (left.Kind() == KindDiscrete) != (right.Kind() == KindDiscrete) {
		e := modelErr(ErrKindMismatch, fmt.Sprintf("%s compared with %s", left.Kind(), right.Kind()), left, right)
		e.Shape = c.shape
		return e
	}
	if _, ok := left.(*LocalExtremum); ok && c.op != OpEqual {
		e := modelErr(ErrInvalidOperator, "extremum searches only support ==", left, right)
		e.Shape = c.shape
		return e
	}

	lu, ru := left.Unit(), right.Unit()
	switch {
	case lu.IsDimensionless() && ru.IsDimensionless():
		return nil
	case ru.IsDimensionless():
		b.log.Warn(context.Background(), "constant has no unit; reading it in the property's unit",
			logging.String("property", left.String()),
			logging.String("unit", lu.String()),
			logging.Float("value", right.Quantity().Value),
		)
		c.right = right.withUnit(lu)
		return nil
	case !lu.CompatibleWith(ru):
		e := modelErr(ErrIncompatibleUnits, fmt.Sprintf("%s vs %s", lu, ru), left, right)
		e.Shape = c.shape
		return e
	}
	return nil
}

// MustCompare is Compare for fixtures; it panics on error.
func (b *Builder) MustCompare(left any, symbol string, right any) *Constraint {
	c, err := b.Compare(left, symbol, right)
	if err != nil {
		panic(err)
	}
	return c
}

// Quantity is shorthand for a unit-carrying literal.
func Quantity(v float64, u units.Unit) units.Quantity { return units.Q(v, u) }
