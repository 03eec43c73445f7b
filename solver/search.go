package solver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/units"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// Engine is the geometry collaborator: pointwise evaluation plus the two
// search primitives the strategies delegate to.
type Engine interface {
	core.Evaluator
	SearchScalar(ctx context.Context, req ScalarSearch) (*window.Window, error)
	SearchOccultation(ctx context.Context, req OccultationSearch) (*window.Window, error)
}

// StepFunc returns the step to take from t, in seconds.
type StepFunc func(t float64) float64

// RefineFunc picks the next time to test between t1 and t2, where the
// condition state is s1 at t1 and s2 at t2.
type RefineFunc func(t1, t2 float64, s1, s2 bool) float64

// ConstantStep returns a StepFunc that always answers step.
func ConstantStep(step float64) StepFunc {
	return func(float64) float64 { return step }
}

// Bisect refines by halving the bracket.
func Bisect(t1, t2 float64, _, _ bool) float64 { return t1 + (t2-t1)/2 }

// SearchControl carries the parts of a search request shared by every
// primitive.
type SearchControl struct {
	Confinement  *window.Window
	Step         StepFunc
	Refine       RefineFunc
	Tolerance    float64
	MaxIntervals int
	Reporter     Reporter
	// Cancelled is polled between evaluations; once it reports true the
	// engine stops and returns an error.
	Cancelled func() bool
}

// ScalarSearch asks the engine for the times a scalar quantity satisfies a
// relation.
type ScalarSearch struct {
	SearchControl
	Params EventParams
}

// OccultationSearch asks the engine for the times an occultation of the
// requested type is in progress.
type OccultationSearch struct {
	SearchControl
	Geometry core.OccultationGeometry
	Type     core.OccultationType
}

// Parameter names understood by scalar searches.
const (
	ParamTarget           = "TARGET"
	ParamObserver         = "OBSERVER"
	ParamAbcorr           = "ABCORR"
	ParamFrame            = "FRAME"
	ParamIlluminator      = "ILLUM"
	ParamTarget1          = "TARGET1"
	ParamFrame1           = "FRAME1"
	ParamShape1           = "SHAPE1"
	ParamTarget2          = "TARGET2"
	ParamFrame2           = "FRAME2"
	ParamShape2           = "SHAPE2"
	ParamAngleType        = "ANGTYP"
	ParamMethod           = "METHOD"
	ParamCoordinateSystem = "COORDINATE SYSTEM"
	ParamCoordinate       = "COORDINATE"
	ParamReferenceFrame   = "REFERENCE FRAME"
	ParamVectorDefinition = "VECTOR DEFINITION"
	ParamDREF             = "DREF"
	ParamDVEC             = "DVEC"
	ParamEllipsoid        = "ELLIPSOID"
)

// Relation names carried in EventParams.Operator.
const (
	RelationGreater = ">"
	RelationLess    = "<"
	RelationEqual   = "="
	RelationLocMax  = "LOCMAX"
	RelationLocMin  = "LOCMIN"
	RelationAbsMax  = "ABSMAX"
	RelationAbsMin  = "ABSMIN"
)

// EventParams is the flat parameter set of a scalar search.
type EventParams struct {
	// Quantity is the upper-case quantity name, e.g. "PHASE ANGLE".
	Quantity string
	// Operator is one of the Relation* names.
	Operator string
	// RefValue is expressed in Unit.
	RefValue float64
	// Adjust widens absolute extremum searches, in Unit.
	Adjust float64
	// Unit is the native unit of the quantity.
	Unit units.Unit

	names  []string
	strs   map[string]string
	floats map[string][]float64
	ints   map[string]int
	bools  map[string]bool
}

func (p *EventParams) claim(name string) error {
	for _, n := range p.names {
		if n == name {
			return core.NewModelError(core.ErrDuplicateParameter, fmt.Sprintf("parameter %q set twice", name))
		}
	}
	p.names = append(p.names, name)
	return nil
}

// SetString adds a string parameter; names must be unique.
func (p *EventParams) SetString(name, value string) error {
	if err := p.claim(name); err != nil {
		return err
	}
	if p.strs == nil {
		p.strs = map[string]string{}
	}
	p.strs[name] = value
	return nil
}

// SetFloats adds a float-vector parameter.
func (p *EventParams) SetFloats(name string, values ...float64) error {
	if err := p.claim(name); err != nil {
		return err
	}
	if p.floats == nil {
		p.floats = map[string][]float64{}
	}
	p.floats[name] = append([]float64(nil), values...)
	return nil
}

// SetInt adds an integer parameter.
func (p *EventParams) SetInt(name string, value int) error {
	if err := p.claim(name); err != nil {
		return err
	}
	if p.ints == nil {
		p.ints = map[string]int{}
	}
	p.ints[name] = value
	return nil
}

// SetBool adds a boolean parameter.
func (p *EventParams) SetBool(name string, value bool) error {
	if err := p.claim(name); err != nil {
		return err
	}
	if p.bools == nil {
		p.bools = map[string]bool{}
	}
	p.bools[name] = value
	return nil
}

// Names lists parameter names in insertion order.
func (p EventParams) Names() []string { return append([]string(nil), p.names...) }

func (p EventParams) String(name string) (string, bool) {
	v, ok := p.strs[name]
	return v, ok
}

func (p EventParams) Floats(name string) ([]float64, bool) {
	v, ok := p.floats[name]
	return v, ok
}

func (p EventParams) Int(name string) (int, bool) {
	v, ok := p.ints[name]
	return v, ok
}

func (p EventParams) Bool(name string) (bool, bool) {
	v, ok := p.bools[name]
	return v, ok
}

// setStrings adds name/value pairs in order.
func (p *EventParams) setStrings(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := p.SetString(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

type paramBuilder func(cfg core.Config, p *EventParams) error

func observerTarget(cfg core.Config, p *EventParams) error {
	return p.setStrings(
		ParamTarget, cfg.String(core.KeyTarget),
		ParamObserver, cfg.String(core.KeyObserver),
		ParamAbcorr, cfg.String(core.KeyAberration),
		ParamFrame, cfg.String(core.KeyFrame),
	)
}

// eventQuantities maps property tags to the parameter sets of their search.
var eventQuantities = map[string]paramBuilder{
	core.QuantityDistance:    observerTarget,
	core.QuantityRangeRate:   observerTarget,
	core.QuantityAngularSize: observerTarget,
	core.QuantityPhaseAngle: func(cfg core.Config, p *EventParams) error {
		if err := observerTarget(cfg, p); err != nil {
			return err
		}
		return p.SetString(ParamIlluminator, cfg.String(core.KeyIlluminator))
	},
	core.QuantityIlluminationAngle: func(cfg core.Config, p *EventParams) error {
		if err := observerTarget(cfg, p); err != nil {
			return err
		}
		return p.setStrings(
			ParamIlluminator, cfg.String(core.KeyIlluminator),
			ParamAngleType, cfg.String(core.KeyAngleType),
			ParamMethod, cfg.String(core.KeyMethod),
		)
	},
	core.QuantityAngularSeparation: func(cfg core.Config, p *EventParams) error {
		return p.setStrings(
			ParamTarget1, cfg.String(core.KeyTarget),
			ParamFrame1, "NULL",
			ParamShape1, cfg.String(core.KeyShape1),
			ParamTarget2, cfg.String(core.KeyTarget2),
			ParamFrame2, "NULL",
			ParamShape2, cfg.String(core.KeyShape2),
			ParamObserver, cfg.String(core.KeyObserver),
			ParamAbcorr, cfg.String(core.KeyAberration),
		)
	},
	core.QuantityCoordinate: func(cfg core.Config, p *EventParams) error {
		if def := cfg.String(core.KeyVectorDefinition); def != "POSITION" {
			return fmt.Errorf("%w: vector definition %q", core.ErrUnsupportedOperation, def)
		}
		component := cfg.String(core.KeyComponent)
		if component == "" {
			return core.NewModelError(core.ErrNotScalar, "coordinate searches need a selected component")
		}
		err := p.setStrings(
			ParamTarget, cfg.String(core.KeyTarget),
			ParamObserver, cfg.String(core.KeyObserver),
			ParamAbcorr, cfg.String(core.KeyAberration),
			ParamCoordinateSystem, cfg.String(core.KeyCoordinateSystem),
			ParamCoordinate, component,
			ParamReferenceFrame, cfg.String(core.KeyFrame),
			ParamVectorDefinition, "POSITION",
			ParamMethod, cfg.String(core.KeyMethod),
			ParamDREF, "",
		)
		if err != nil {
			return err
		}
		if err := p.SetFloats(ParamDVEC, 0, 0, 0); err != nil {
			return err
		}
		if ell, ok := cfg[core.KeyEllipsoid].(core.Ellipsoid); ok {
			return p.SetFloats(ParamEllipsoid, ell.EquatorialRadius, ell.Flattening)
		}
		return nil
	},
}

// KnownQuantities lists the property tags the event strategy can search.
func KnownQuantities() []string {
	out := make([]string, 0, len(eventQuantities))
	for k := range eventQuantities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var relations = map[string]string{
	">":  RelationGreater,
	"<":  RelationLess,
	"==": RelationEqual,
}

// BuildEventParams translates a flat property description into search
// parameters. The reference value is converted into the quantity's native
// unit unless it is dimensionless.
func BuildEventParams(cfg core.Config) (EventParams, error) {
	tag := cfg.String(core.KeyProperty)
	build, ok := eventQuantities[tag]
	if !ok {
		return EventParams{}, fmt.Errorf("%w: no event search for property %q", core.ErrUnsupportedOperation, tag)
	}

	unit, ok := cfg.Unit(core.KeyPropertyUnit)
	if !ok {
		return EventParams{}, core.NewModelError(core.ErrInvalidArgument, "property unit missing from description")
	}
	p := EventParams{Quantity: quantityName(tag), Unit: unit}
	if err := build(cfg, &p); err != nil {
		return EventParams{}, err
	}

	if mode := cfg.String(core.KeyExtremum); mode != "" {
		p.Operator = mode
		if adj, ok := cfg[core.KeyAdjust].(units.Quantity); ok && adj.Value != 0 {
			q, err := adj.To(unit)
			if err != nil {
				return EventParams{}, core.NewModelError(core.ErrIncompatibleUnits, err.Error())
			}
			p.Adjust = q.Value
		}
		return p, nil
	}

	rel, ok := relations[cfg.String(core.KeyOperator)]
	if !ok {
		return EventParams{}, fmt.Errorf("%w: operator %q in an event search", core.ErrUnsupportedOperation, cfg.String(core.KeyOperator))
	}
	p.Operator = rel

	ref, ok := cfg.Float(core.KeyReferenceValue)
	if !ok {
		return EventParams{}, core.NewModelError(core.ErrInvalidArgument, "reference value missing from description")
	}
	if refUnit, ok := cfg.Unit(core.KeyReferenceUnit); ok && !refUnit.IsDimensionless() && !refUnit.Equal(unit) {
		v, err := units.Convert(ref, refUnit, unit)
		if err != nil {
			return EventParams{}, core.NewModelError(core.ErrIncompatibleUnits, err.Error())
		}
		ref = v
	}
	p.RefValue = ref
	return p, nil
}

func quantityName(tag string) string {
	return strings.ToUpper(strings.ReplaceAll(tag, "_", " "))
}
