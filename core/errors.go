package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModel is matched by every construction-time model error.
	ErrModel = errors.New("model error")

	// Reasons carried by *ModelError.
	ErrIncompatibleUnits  = errors.New("incompatible units")
	ErrAmbiguousShape     = errors.New("ambiguous constraint shape")
	ErrInvalidOperator    = errors.New("operator not valid for constraint shape")
	ErrDuplicateParameter = errors.New("duplicate parameter")
	ErrNotVector          = errors.New("property is not a vector")
	ErrNotScalar          = errors.New("property is not a scalar")
	ErrKindMismatch       = errors.New("operand kinds differ")
	ErrInvalidArgument    = errors.New("invalid argument")

	// ErrUnsupportedOperation is returned for operations that are recognised
	// but not implemented for the given operands.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNoEvaluator is returned when a targeted property has no engine.
	ErrNoEvaluator = errors.New("no evaluator configured")
)

// ModelError describes a graph that cannot be built. It matches both ErrModel
// and its Reason with errors.Is.
type ModelError struct {
	Reason    error
	Shape     Shape
	Left      string
	Right     string
	LeftUnit  string
	RightUnit string
	Detail    string
}

func (e *ModelError) Error() string {
	var b strings.Builder
	b.WriteString("model error: ")
	if e.Reason != nil {
		b.WriteString(e.Reason.Error())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Left != "" || e.Right != "" {
		fmt.Fprintf(&b, " (left=%s", e.Left)
		if e.LeftUnit != "" {
			fmt.Fprintf(&b, " [%s]", e.LeftUnit)
		}
		fmt.Fprintf(&b, ", right=%s", e.Right)
		if e.RightUnit != "" {
			fmt.Fprintf(&b, " [%s]", e.RightUnit)
		}
		if e.Shape != ShapeUnknown {
			fmt.Fprintf(&b, ", shape=%s", e.Shape)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *ModelError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrModel}
	}
	return []error{ErrModel, e.Reason}
}

func modelErr(reason error, detail string, left, right Property) *ModelError {
	e := &ModelError{Reason: reason, Detail: detail}
	if left != nil {
		e.Left = left.String()
		e.LeftUnit = left.Unit().String()
	}
	if right != nil {
		e.Right = right.String()
		e.RightUnit = right.Unit().String()
	}
	return e
}

// NewModelError builds a ModelError for callers outside the package, such as
// strategies rejecting a parameter set.
func NewModelError(reason error, detail string) *ModelError {
	return &ModelError{Reason: reason, Detail: detail}
}
