package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/units"
)

// CoordinateSystem names a representation of a position vector.
type CoordinateSystem string

const (
	Rectangular    CoordinateSystem = "RECTANGULAR"
	Latitudinal    CoordinateSystem = "LATITUDINAL"
	Spherical      CoordinateSystem = "SPHERICAL"
	Cylindrical    CoordinateSystem = "CYLINDRICAL"
	RaDec          CoordinateSystem = "RA/DEC"
	Geodetic       CoordinateSystem = "GEODETIC"
	Planetographic CoordinateSystem = "PLANETOGRAPHIC"
)

var coordinateComponents = map[CoordinateSystem][3]string{
	Rectangular:    {"x", "y", "z"},
	Latitudinal:    {"radius", "longitude", "latitude"},
	Spherical:      {"radius", "colatitude", "longitude"},
	Cylindrical:    {"radius", "longitude", "z"},
	RaDec:          {"range", "right_ascension", "declination"},
	Geodetic:       {"longitude", "latitude", "altitude"},
	Planetographic: {"longitude", "latitude", "altitude"},
}

var coordinateUnits = map[CoordinateSystem][3]units.Unit{
	Rectangular:    {units.Kilometer, units.Kilometer, units.Kilometer},
	Latitudinal:    {units.Kilometer, units.Radian, units.Radian},
	Spherical:      {units.Kilometer, units.Radian, units.Radian},
	Cylindrical:    {units.Kilometer, units.Radian, units.Kilometer},
	RaDec:          {units.Kilometer, units.Radian, units.Radian},
	Geodetic:       {units.Radian, units.Radian, units.Kilometer},
	Planetographic: {units.Radian, units.Radian, units.Kilometer},
}

// ParseCoordinateSystem accepts system names case-insensitively; "RADEC" is
// accepted for RA/DEC.
func ParseCoordinateSystem(s string) (CoordinateSystem, error) {
	sys := CoordinateSystem(strings.ToUpper(strings.TrimSpace(s)))
	if sys == "RADEC" {
		sys = RaDec
	}
	if _, ok := coordinateComponents[sys]; !ok {
		return "", fmt.Errorf("%w: unknown coordinate system %q", ErrInvalidArgument, s)
	}
	return sys, nil
}

// ComponentNames lists the component names of sys.
func (sys CoordinateSystem) ComponentNames() [3]string { return coordinateComponents[sys] }

// Ellipsoid is the reference surface for geodetic and planetographic
// coordinates.
type Ellipsoid struct {
	EquatorialRadius float64 // km
	Flattening       float64
}

// ConvertCoordinates expresses a rectangular vector v in sys.
func ConvertCoordinates(sys CoordinateSystem, v [3]float64, ell Ellipsoid) ([3]float64, error) {
	x, y, z := v[0], v[1], v[2]
	rho := math.Hypot(x, y)
	r := math.Sqrt(rho*rho + z*z)
	switch sys {
	case Rectangular:
		return v, nil
	case Latitudinal:
		return [3]float64{r, math.Atan2(y, x), math.Atan2(z, rho)}, nil
	case Spherical:
		return [3]float64{r, math.Atan2(rho, z), math.Atan2(y, x)}, nil
	case Cylindrical:
		return [3]float64{rho, wrapTwoPi(math.Atan2(y, x)), z}, nil
	case RaDec:
		return [3]float64{r, wrapTwoPi(math.Atan2(y, x)), math.Atan2(z, rho)}, nil
	case Geodetic, Planetographic:
		if ell.EquatorialRadius <= 0 || ell.Flattening >= 1 {
			return [3]float64{}, fmt.Errorf("%w: %s coordinates need an ellipsoid", ErrInvalidArgument, sys)
		}
		lon, lat, alt := geodetic(x, y, z, ell)
		if sys == Planetographic {
			lon = wrapTwoPi(-lon)
		}
		return [3]float64{lon, lat, alt}, nil
	default:
		return [3]float64{}, fmt.Errorf("%w: unknown coordinate system %q", ErrInvalidArgument, sys)
	}
}

func wrapTwoPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// geodetic converts rectangular coordinates to longitude, geodetic latitude
// and altitude above the ellipsoid by fixed-point iteration on latitude.
func geodetic(x, y, z float64, ell Ellipsoid) (lon, lat, alt float64) {
	re, f := ell.EquatorialRadius, ell.Flattening
	e2 := f * (2 - f)
	lon = math.Atan2(y, x)
	p := math.Hypot(x, y)
	if p < 1e-12*re {
		polar := re * (1 - f)
		if z >= 0 {
			return lon, math.Pi / 2, z - polar
		}
		return lon, -math.Pi / 2, -z - polar
	}
	lat = math.Atan2(z, p*(1-e2))
	for i := 0; i < 10; i++ {
		sin := math.Sin(lat)
		n := re / math.Sqrt(1-e2*sin*sin)
		alt = p/math.Cos(lat) - n
		next := math.Atan2(z, p*(1-e2*n/(n+alt)))
		if math.Abs(next-lat) < 1e-14 {
			lat = next
			break
		}
		lat = next
	}
	sin := math.Sin(lat)
	n := re / math.Sqrt(1-e2*sin*sin)
	alt = p/math.Cos(lat) - n
	return lon, lat, alt
}

// Position is the vector from observer (the origin) to target, in km.
type Position struct{ targeted }

// NewPosition returns the position of obs.Target relative to obs.Observer.
func NewPosition(eval Evaluator, obs Observation) *Position {
	return &Position{targeted{eval: eval, obs: obs.normalized()}}
}

func (p *Position) Name() string     { return QuantityPosition }
func (p *Position) Unit() units.Unit { return units.Kilometer }
func (p *Position) Kind() Kind       { return KindVector }

func (p *Position) ComponentNames() [3]string     { return coordinateComponents[Rectangular] }
func (p *Position) ComponentUnits() [3]units.Unit { return coordinateUnits[Rectangular] }

func (p *Position) ValueAt(t float64) (Value, error) {
	return p.evaluate(QuantityRequest{Quantity: QuantityPosition}, t)
}

func (p *Position) DescribeInto(cfg Config) error {
	p.describe(cfg, QuantityCoordinate, p.Unit())
	cfg[KeyCoordinateSystem] = string(Rectangular)
	cfg[KeyVectorDefinition] = "POSITION"
	cfg[KeyMethod] = ""
	return nil
}

func (p *Position) String() string {
	return fmt.Sprintf("position(%s from %s, %s)", p.obs.Target, p.obs.Observer, p.obs.Frame)
}

// Coordinates presents a position vector in another coordinate system.
type Coordinates struct {
	vector *Position
	system CoordinateSystem
	ell    Ellipsoid
}

// NewCoordinates wraps p in sys. Geodetic and planetographic systems need an
// ellipsoid.
func NewCoordinates(p *Position, sys CoordinateSystem, ell Ellipsoid) (*Coordinates, error) {
	if _, ok := coordinateComponents[sys]; !ok {
		return nil, modelErr(ErrInvalidArgument, fmt.Sprintf("unknown coordinate system %q", sys), p, nil)
	}
	if (sys == Geodetic || sys == Planetographic) && ell.EquatorialRadius <= 0 {
		return nil, modelErr(ErrInvalidArgument, fmt.Sprintf("%s coordinates need an ellipsoid", sys), p, nil)
	}
	return &Coordinates{vector: p, system: sys, ell: ell}, nil
}

// System returns the coordinate system.
func (c *Coordinates) System() CoordinateSystem { return c.system }

func (c *Coordinates) Name() string     { return QuantityCoordinate }
func (c *Coordinates) Unit() units.Unit { return units.Dimensionless }
func (c *Coordinates) Kind() Kind       { return KindVector }

func (c *Coordinates) ComponentNames() [3]string     { return coordinateComponents[c.system] }
func (c *Coordinates) ComponentUnits() [3]units.Unit { return coordinateUnits[c.system] }

func (c *Coordinates) ValueAt(t float64) (Value, error) {
	v, err := c.vector.ValueAt(t)
	if err != nil {
		return Value{}, err
	}
	out, err := ConvertCoordinates(c.system, v.Vector, c.ell)
	if err != nil {
		return Value{}, err
	}
	return VectorValue(out), nil
}

func (c *Coordinates) DescribeInto(cfg Config) error {
	if err := c.vector.DescribeInto(cfg); err != nil {
		return err
	}
	cfg[KeyCoordinateSystem] = string(c.system)
	if c.system == Geodetic || c.system == Planetographic {
		cfg[KeyEllipsoid] = c.ell
	}
	return nil
}

func (c *Coordinates) String() string {
	return fmt.Sprintf("%s(%s)", strings.ToLower(string(c.system)), c.vector)
}

// Component selects one named component of the coordinates.
func (c *Coordinates) Component(name string) (*ComponentSelector, error) {
	return SelectComponentByName(c, name)
}

// ComponentSelector is one scalar component of a vector property.
type ComponentSelector struct {
	parent VectorProperty
	index  int
}

// SelectComponent picks component i (0..2) of p. It fails with a ModelError
// when p is not a vector property.
func SelectComponent(p Property, i int) (*ComponentSelector, error) {
	vp, ok := p.(VectorProperty)
	if !ok || p.Kind() != KindVector {
		return nil, modelErr(ErrNotVector, "cannot select a component", p, nil)
	}
	if i < 0 || i > 2 {
		return nil, modelErr(ErrInvalidArgument, fmt.Sprintf("component index %d out of range", i), p, nil)
	}
	return &ComponentSelector{parent: vp, index: i}, nil
}

// SelectComponentByName picks a component by name ("x", "latitude", ...).
func SelectComponentByName(p Property, name string) (*ComponentSelector, error) {
	vp, ok := p.(VectorProperty)
	if !ok || p.Kind() != KindVector {
		return nil, modelErr(ErrNotVector, "cannot select a component", p, nil)
	}
	want := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	for i, n := range vp.ComponentNames() {
		if n == want {
			return &ComponentSelector{parent: vp, index: i}, nil
		}
	}
	return nil, modelErr(ErrInvalidArgument, fmt.Sprintf("no component %q in %v", name, vp.ComponentNames()), p, nil)
}

// ComponentName returns the selected component's name.
func (s *ComponentSelector) ComponentName() string { return s.parent.ComponentNames()[s.index] }

// Parent returns the vector property the component is taken from.
func (s *ComponentSelector) Parent() VectorProperty { return s.parent }

func (s *ComponentSelector) Name() string     { return s.parent.Name() }
func (s *ComponentSelector) Unit() units.Unit { return s.parent.ComponentUnits()[s.index] }
func (s *ComponentSelector) Kind() Kind       { return KindScalar }

func (s *ComponentSelector) ValueAt(t float64) (Value, error) {
	v, err := s.parent.ValueAt(t)
	if err != nil {
		return Value{}, err
	}
	return ScalarValue(v.Vector[s.index]), nil
}

func (s *ComponentSelector) DescribeInto(cfg Config) error {
	if err := s.parent.DescribeInto(cfg); err != nil {
		return err
	}
	cfg[KeyComponent] = s.ComponentName()
	cfg[KeyPropertyUnit] = s.Unit()
	return nil
}

func (s *ComponentSelector) String() string {
	return fmt.Sprintf("%s.%s", s.parent, s.ComponentName())
}
