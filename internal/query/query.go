// Package query decodes declarative query documents (YAML, or JSON as a YAML
// subset) into a body registry, a property graph, a condition and its
// confinement window.
package query

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/epoch"
	"github.com/signalsfoundry/trajectory-segmenter/internal/ephem"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/units"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// ErrInvalidDocument is returned for documents that decode but do not
// describe a usable query.
var ErrInvalidDocument = errors.New("invalid query document")

// Document is the top-level query shape.
type Document struct {
	Bodies     []BodySpec              `yaml:"bodies"`
	Window     WindowSpec              `yaml:"window"`
	Properties map[string]PropertySpec `yaml:"properties"`
	Constraint *NodeSpec               `yaml:"constraint"`
	Solver     *SolverSpec             `yaml:"solver,omitempty"`
}

// BodySpec declares one body. At most one motion block may be set; none
// keeps the body fixed at its center.
type BodySpec struct {
	Name       string      `yaml:"name"`
	Center     string      `yaml:"center,omitempty"`
	Radius     float64     `yaml:"radius,omitempty"` // km
	Flattening float64     `yaml:"flattening,omitempty"`
	Fixed      *[3]float64 `yaml:"fixed,omitempty"`
	Linear     *LinearSpec `yaml:"linear,omitempty"`
	Kepler     *KeplerSpec `yaml:"kepler,omitempty"`
	TLE        *TLESpec    `yaml:"tle,omitempty"`
}

type LinearSpec struct {
	Epoch    any        `yaml:"epoch"`
	Position [3]float64 `yaml:"position"`
	Velocity [3]float64 `yaml:"velocity"`
}

// KeplerSpec holds osculating elements; angles are in degrees.
type KeplerSpec struct {
	Epoch         any     `yaml:"epoch"`
	SemiMajorAxis float64 `yaml:"a"`
	Eccentricity  float64 `yaml:"e"`
	Inclination   float64 `yaml:"i"`
	RAAN          float64 `yaml:"raan"`
	ArgPeriapsis  float64 `yaml:"argp"`
	MeanAnomaly   float64 `yaml:"m"`
	GM            float64 `yaml:"gm"`
}

type TLESpec struct {
	Line1 string `yaml:"line1"`
	Line2 string `yaml:"line2"`
}

// WindowSpec is either a start/end pair or a list of intervals. Bounds are
// ISO strings or ET numbers.
type WindowSpec struct {
	Start     any            `yaml:"start,omitempty"`
	End       any            `yaml:"end,omitempty"`
	Intervals []IntervalSpec `yaml:"intervals,omitempty"`
}

type IntervalSpec struct {
	Start any `yaml:"start"`
	End   any `yaml:"end"`
}

// PropertySpec declares a named property. Which fields apply depends on
// Quantity.
type PropertySpec struct {
	Quantity    string `yaml:"quantity"`
	Observer    string `yaml:"observer,omitempty"`
	Target      string `yaml:"target,omitempty"`
	Frame       string `yaml:"frame,omitempty"`
	Aberration  string `yaml:"aberration,omitempty"`
	Illuminator string `yaml:"illuminator,omitempty"`
	// Angle selects PHASE, INCIDENCE or EMISSION for illumination angles.
	Angle   string `yaml:"angle,omitempty"`
	Target2 string `yaml:"target2,omitempty"`
	Shape1  string `yaml:"shape1,omitempty"`
	Shape2  string `yaml:"shape2,omitempty"`
	// System and Component select a coordinate. Geodetic systems take their
	// ellipsoid from the observer body.
	System    string `yaml:"system,omitempty"`
	Component string `yaml:"component,omitempty"`

	Front      string `yaml:"front,omitempty"`
	FrontShape string `yaml:"front_shape,omitempty"`
	Back       string `yaml:"back,omitempty"`
	BackShape  string `yaml:"back_shape,omitempty"`

	// Unit re-expresses the property in another compatible unit.
	Unit string `yaml:"unit,omitempty"`
}

// NodeSpec is one node of the condition tree. Exactly one of the comparison
// (Property with Op or Extremum), And, Or or Not forms must be used.
type NodeSpec struct {
	Property string  `yaml:"property,omitempty"`
	Op       string  `yaml:"op,omitempty"`
	Value    any     `yaml:"value,omitempty"`
	Unit     string  `yaml:"unit,omitempty"`
	Extremum string  `yaml:"extremum,omitempty"`
	Adjust   float64 `yaml:"adjust,omitempty"`

	And []*NodeSpec `yaml:"and,omitempty"`
	Or  []*NodeSpec `yaml:"or,omitempty"`
	Not *NodeSpec   `yaml:"not,omitempty"`
}

// SolverSpec overrides solver settings for one query.
type SolverSpec struct {
	Step             *float64 `yaml:"step,omitempty"`
	Tolerance        *float64 `yaml:"tolerance,omitempty"`
	MinIntervalSize  *float64 `yaml:"min_interval_size,omitempty"`
	MaxIntervals     *int     `yaml:"max_intervals,omitempty"`
	ParallelBranches *bool    `yaml:"parallel_branches,omitempty"`
}

// Apply returns cfg with the overrides set in s.
func (s *SolverSpec) Apply(cfg solver.Config) solver.Config {
	if s == nil {
		return cfg
	}
	if s.Step != nil {
		cfg.Step = *s.Step
	}
	if s.Tolerance != nil {
		cfg.Tolerance = *s.Tolerance
	}
	if s.MinIntervalSize != nil {
		cfg.MinIntervalSize = *s.MinIntervalSize
	}
	if s.MaxIntervals != nil {
		cfg.MaxIntervals = *s.MaxIntervals
	}
	if s.ParallelBranches != nil {
		cfg.ParallelBranches = *s.ParallelBranches
	}
	return cfg
}

// Parse decodes a document from r. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("query: decode failed: %w", err)
	}
	return &doc, nil
}

// ParseMap decodes a document already unmarshalled into generic maps, such
// as the contents of a protobuf Struct.
func ParseMap(m map[string]any) (*Document, error) {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("query: encode failed: %w", err)
	}
	return Parse(bytes.NewReader(raw))
}

// Query is a compiled document, ready to solve.
type Query struct {
	Bodies     *ephem.Bodies
	Engine     *ephem.Engine
	Properties map[string]core.Property
	Condition  core.Condition
	Window     *window.Window
	Solver     *SolverSpec
}

// PropertyNames returns the declared property names in sorted order.
func (q *Query) PropertyNames() []string {
	out := make([]string, 0, len(q.Properties))
	for n := range q.Properties {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Compile builds the registry, engine, properties, condition and window of
// doc. A document without a constraint compiles with a nil Condition, which
// is enough for pointwise evaluation.
func Compile(doc *Document, log logging.Logger) (*Query, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	log = logging.OrNoop(log)

	bodies, err := LoadBodies(doc.Bodies)
	if err != nil {
		return nil, err
	}
	eng := ephem.NewEngine(bodies, log)

	w, err := doc.Window.Build()
	if err != nil {
		return nil, err
	}

	c := &compiler{
		eval:   eng,
		bodies: bodies,
		b:      core.NewBuilder(log),
		specs:  doc.Properties,
		props:  make(map[string]core.Property, len(doc.Properties)),
	}
	for name := range doc.Properties {
		if _, err := c.property(name); err != nil {
			return nil, err
		}
	}

	q := &Query{
		Bodies:     bodies,
		Engine:     eng,
		Properties: c.props,
		Window:     w,
		Solver:     doc.Solver,
	}
	if doc.Constraint != nil {
		if q.Condition, err = c.node(doc.Constraint, "constraint"); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// LoadBodies builds a registry from body declarations.
func LoadBodies(specs []BodySpec) (*ephem.Bodies, error) {
	r := ephem.NewBodies()
	for i, s := range specs {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("%w: body %d has no name", ErrInvalidDocument, i)
		}
		m, err := s.motion()
		if err != nil {
			return nil, fmt.Errorf("body %q: %w", s.Name, err)
		}
		if err := r.Add(ephem.Body{
			Name:       s.Name,
			Center:     s.Center,
			Radius:     s.Radius,
			Flattening: s.Flattening,
			Motion:     m,
		}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s BodySpec) motion() (ephem.MotionModel, error) {
	set := 0
	for _, ok := range []bool{s.Fixed != nil, s.Linear != nil, s.Kepler != nil, s.TLE != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: more than one motion model", ErrInvalidDocument)
	}

	switch {
	case s.Fixed != nil:
		return ephem.Fixed{Pos: vec(*s.Fixed)}, nil
	case s.Linear != nil:
		et, err := optionalET(s.Linear.Epoch)
		if err != nil {
			return nil, err
		}
		return ephem.Linear{Epoch: et, Pos: vec(s.Linear.Position), Vel: vec(s.Linear.Velocity)}, nil
	case s.Kepler != nil:
		k := s.Kepler
		et, err := optionalET(k.Epoch)
		if err != nil {
			return nil, err
		}
		m := ephem.Kepler{
			Epoch:         et,
			SemiMajorAxis: k.SemiMajorAxis,
			Eccentricity:  k.Eccentricity,
			Inclination:   deg(k.Inclination),
			RAAN:          deg(k.RAAN),
			ArgPeriapsis:  deg(k.ArgPeriapsis),
			MeanAnomaly:   deg(k.MeanAnomaly),
			GM:            k.GM,
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case s.TLE != nil:
		return ephem.NewSGP4(s.TLE.Line1, s.TLE.Line2)
	default:
		return ephem.Fixed{}, nil
	}
}

func vec(a [3]float64) ephem.Vec3 { return ephem.Vec3{X: a[0], Y: a[1], Z: a[2]} }

func deg(v float64) float64 { return v * math.Pi / 180 }

// optionalET treats a missing epoch as J2000.
func optionalET(v any) (float64, error) {
	if v == nil {
		return 0, nil
	}
	return epoch.ToET(v)
}

// Build returns the confinement window.
func (s WindowSpec) Build() (*window.Window, error) {
	hasBounds := s.Start != nil || s.End != nil
	switch {
	case hasBounds && len(s.Intervals) > 0:
		return nil, fmt.Errorf("%w: window has both bounds and intervals", ErrInvalidDocument)
	case hasBounds:
		return window.FromBounds(s.Start, s.End)
	case len(s.Intervals) > 0:
		w := window.New()
		for i, iv := range s.Intervals {
			part, err := window.FromBounds(iv.Start, iv.End)
			if err != nil {
				return nil, fmt.Errorf("window interval %d: %w", i, err)
			}
			w = window.Union(w, part)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: window is empty", ErrInvalidDocument)
	}
}

type compiler struct {
	eval   core.Evaluator
	bodies *ephem.Bodies
	b      *core.Builder
	specs  map[string]PropertySpec
	props  map[string]core.Property
}

func (c *compiler) property(name string) (core.Property, error) {
	if p, ok := c.props[name]; ok {
		return p, nil
	}
	spec, ok := c.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown property %q", ErrInvalidDocument, name)
	}
	p, err := c.buildProperty(spec)
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", name, err)
	}
	if spec.Unit != "" {
		u, err := units.Parse(spec.Unit)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		if p, err = core.As(p, u); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
	}
	c.props[name] = p
	return p, nil
}

func (c *compiler) buildProperty(s PropertySpec) (core.Property, error) {
	ab, err := core.ParseAberration(s.Aberration)
	if err != nil {
		return nil, err
	}
	obs := core.Observation{Observer: s.Observer, Target: s.Target, Frame: s.Frame, Aberration: ab}

	switch q := strings.ToLower(strings.TrimSpace(s.Quantity)); q {
	case core.QuantityDistance:
		return core.NewDistance(c.eval, obs), nil
	case core.QuantityRangeRate:
		return core.NewRangeRate(c.eval, obs), nil
	case core.QuantityAngularSize:
		return core.NewAngularSize(c.eval, obs), nil
	case core.QuantityPhaseAngle:
		return core.NewPhaseAngle(c.eval, obs, s.Illuminator), nil
	case core.QuantityIlluminationAngle:
		return core.NewIlluminationAngle(c.eval, obs, s.Illuminator,
			core.IlluminationKind(strings.ToUpper(s.Angle))), nil
	case core.QuantityAngularSeparation:
		if s.Target2 == "" {
			return nil, fmt.Errorf("%w: angular separation needs target2", ErrInvalidDocument)
		}
		return core.NewAngularSeparation(c.eval, obs, s.Target2, shape(s.Shape1), shape(s.Shape2)), nil
	case core.QuantityPosition, core.QuantityCoordinate:
		return c.coordinate(s, obs)
	case core.QuantityOccultation:
		return core.NewOccultation(c.eval, core.OccultationGeometry{
			Observer:   s.Observer,
			Front:      s.Front,
			FrontShape: shape(s.FrontShape),
			Back:       s.Back,
			BackShape:  shape(s.BackShape),
			Aberration: ab,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown quantity %q", ErrInvalidDocument, s.Quantity)
	}
}

func shape(s string) core.BodyShape {
	return core.BodyShape(strings.ToUpper(strings.TrimSpace(s)))
}

func (c *compiler) coordinate(s PropertySpec, obs core.Observation) (core.Property, error) {
	pos := core.NewPosition(c.eval, obs)
	var vp core.Property = pos
	if s.System != "" {
		sys, err := core.ParseCoordinateSystem(s.System)
		if err != nil {
			return nil, err
		}
		var ell core.Ellipsoid
		if sys == core.Geodetic || sys == core.Planetographic {
			if ell, err = c.ellipsoid(obs.Observer); err != nil {
				return nil, err
			}
		}
		if vp, err = core.NewCoordinates(pos, sys, ell); err != nil {
			return nil, err
		}
	}
	if s.Component == "" {
		return vp, nil
	}
	return core.SelectComponentByName(vp, s.Component)
}

// ellipsoid uses the body the position is measured from.
func (c *compiler) ellipsoid(name string) (core.Ellipsoid, error) {
	b, err := c.bodies.Get(name)
	if err != nil {
		return core.Ellipsoid{}, err
	}
	return core.Ellipsoid{EquatorialRadius: b.Radius, Flattening: b.Flattening}, nil
}

func (c *compiler) node(n *NodeSpec, path string) (core.Condition, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidDocument, path)
	}
	forms := 0
	for _, ok := range []bool{n.Property != "", len(n.And) > 0, len(n.Or) > 0, n.Not != nil} {
		if ok {
			forms++
		}
	}
	if forms != 1 {
		return nil, fmt.Errorf("%w: %s must be exactly one of property, and, or, not", ErrInvalidDocument, path)
	}

	switch {
	case n.Not != nil:
		inner, err := c.node(n.Not, path+".not")
		if err != nil {
			return nil, err
		}
		return core.Not(inner), nil
	case len(n.And) > 0:
		return c.fold(n.And, path+".and", c.b.And)
	case len(n.Or) > 0:
		return c.fold(n.Or, path+".or", c.b.Or)
	default:
		return c.comparison(n, path)
	}
}

func (c *compiler) fold(list []*NodeSpec, path string, join func(l, r core.Condition) (*core.Constraint, error)) (core.Condition, error) {
	if len(list) < 2 {
		return nil, fmt.Errorf("%w: %s needs at least two operands", ErrInvalidDocument, path)
	}
	acc, err := c.node(list[0], fmt.Sprintf("%s[0]", path))
	if err != nil {
		return nil, err
	}
	for i, n := range list[1:] {
		next, err := c.node(n, fmt.Sprintf("%s[%d]", path, i+1))
		if err != nil {
			return nil, err
		}
		if acc, err = join(acc, next); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return acc, nil
}

func (c *compiler) comparison(n *NodeSpec, path string) (core.Condition, error) {
	p, err := c.property(n.Property)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if n.Extremum != "" {
		if n.Op != "" || n.Value != nil {
			return nil, fmt.Errorf("%w: %s: extremum takes no op or value", ErrInvalidDocument, path)
		}
		mode, err := core.ParseExtremumMode(n.Extremum)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		adjust := n.Adjust
		if n.Unit != "" && adjust != 0 {
			if adjust, err = convert(adjust, n.Unit, p.Unit()); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		ext, err := c.b.Extremum(p, mode, adjust)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return ext, nil
	}

	if n.Op == "" {
		return nil, fmt.Errorf("%w: %s needs op or extremum", ErrInvalidDocument, path)
	}
	ref, err := constant(p, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	con, err := c.b.Compare(p, n.Op, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return con, nil
}

// constant reads the reference value of a comparison. Occultation
// properties take a type name; scalars take a number with an optional unit.
func constant(p core.Property, n *NodeSpec) (*core.Constant, error) {
	if p.Kind() == core.KindDiscrete {
		s, ok := n.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: occultation value must be a type name", ErrInvalidDocument)
		}
		o, err := core.ParseOccultationType(s)
		if err != nil {
			return nil, err
		}
		return core.OccultationConstant(o), nil
	}

	var v float64
	switch x := n.Value.(type) {
	case int:
		v = float64(x)
	case float64:
		v = x
	default:
		return nil, fmt.Errorf("%w: value must be a number, got %T", ErrInvalidDocument, n.Value)
	}
	u := units.Dimensionless
	if n.Unit != "" {
		var err error
		if u, err = units.Parse(n.Unit); err != nil {
			return nil, err
		}
	}
	return core.NewConstant(v, u), nil
}

func convert(v float64, from string, to units.Unit) (float64, error) {
	u, err := units.Parse(from)
	if err != nil {
		return 0, err
	}
	return units.Convert(v, u, to)
}
