// Package units parses unit symbols, checks dimensional compatibility and
// converts quantities between compatible units.
//
// A Unit is a scale factor onto SI-like base units (metre, second, radian,
// kilogram) plus the exponents of each base dimension. Angles carry their own
// dimension so an angle is never silently compared with a bare number.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnknownUnit is returned when a unit symbol cannot be parsed.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIncompatible is returned when converting between different dimensions.
	ErrIncompatible = errors.New("incompatible units")
)

// Dimension holds base-dimension exponents.
type Dimension struct {
	Length int8
	Time   int8
	Angle  int8
	Mass   int8
}

func (d Dimension) add(o Dimension, sign int8) Dimension {
	return Dimension{
		Length: d.Length + sign*o.Length,
		Time:   d.Time + sign*o.Time,
		Angle:  d.Angle + sign*o.Angle,
		Mass:   d.Mass + sign*o.Mass,
	}
}

func (d Dimension) pow(n int8) Dimension {
	return Dimension{Length: d.Length * n, Time: d.Time * n, Angle: d.Angle * n, Mass: d.Mass * n}
}

// IsZero reports whether d is dimensionless.
func (d Dimension) IsZero() bool { return d == Dimension{} }

// Unit is an immutable unit of measure.
type Unit struct {
	symbol string
	dim    Dimension
	scale  float64 // factor to base units
}

var (
	Dimensionless = Unit{symbol: "", scale: 1}

	Meter       = Unit{symbol: "m", dim: Dimension{Length: 1}, scale: 1}
	Kilometer   = Unit{symbol: "km", dim: Dimension{Length: 1}, scale: 1e3}
	AU          = Unit{symbol: "au", dim: Dimension{Length: 1}, scale: 149597870700}
	Second      = Unit{symbol: "s", dim: Dimension{Time: 1}, scale: 1}
	Minute      = Unit{symbol: "min", dim: Dimension{Time: 1}, scale: 60}
	Hour        = Unit{symbol: "h", dim: Dimension{Time: 1}, scale: 3600}
	Day         = Unit{symbol: "d", dim: Dimension{Time: 1}, scale: 86400}
	Radian      = Unit{symbol: "rad", dim: Dimension{Angle: 1}, scale: 1}
	Degree      = Unit{symbol: "deg", dim: Dimension{Angle: 1}, scale: math.Pi / 180}
	Arcminute   = Unit{symbol: "arcmin", dim: Dimension{Angle: 1}, scale: math.Pi / (180 * 60)}
	Arcsecond   = Unit{symbol: "arcsec", dim: Dimension{Angle: 1}, scale: math.Pi / (180 * 3600)}
	Kilogram    = Unit{symbol: "kg", dim: Dimension{Mass: 1}, scale: 1}
	KmPerSec    = Unit{symbol: "km/s", dim: Dimension{Length: 1, Time: -1}, scale: 1e3}
	MeterPerSec = Unit{symbol: "m/s", dim: Dimension{Length: 1, Time: -1}, scale: 1}
)

var registry = map[string]Unit{
	"":              Dimensionless,
	"1":             Dimensionless,
	"dimensionless": Dimensionless,
	"m":             Meter,
	"meter":         Meter,
	"meters":        Meter,
	"metre":         Meter,
	"km":            Kilometer,
	"kilometer":     Kilometer,
	"kilometers":    Kilometer,
	"kilometre":     Kilometer,
	"au":            AU,
	"s":             Second,
	"sec":           Second,
	"second":        Second,
	"seconds":       Second,
	"min":           Minute,
	"minute":        Minute,
	"minutes":       Minute,
	"h":             Hour,
	"hr":            Hour,
	"hour":          Hour,
	"hours":         Hour,
	"d":             Day,
	"day":           Day,
	"days":          Day,
	"rad":           Radian,
	"radian":        Radian,
	"radians":       Radian,
	"deg":           Degree,
	"degree":        Degree,
	"degrees":       Degree,
	"arcmin":        Arcminute,
	"arcsec":        Arcsecond,
	"kg":            Kilogram,
}

// String returns the unit symbol; the dimensionless unit renders as
// "dimensionless".
func (u Unit) String() string {
	if u.symbol == "" && u.dim.IsZero() {
		return "dimensionless"
	}
	return u.symbol
}

// Symbol returns the raw symbol, empty for the dimensionless unit.
func (u Unit) Symbol() string { return u.symbol }

// Dimension returns the base-dimension exponents of u.
func (u Unit) Dimension() Dimension { return u.dim }

// IsDimensionless reports whether u has no dimension.
func (u Unit) IsDimensionless() bool { return u.dim.IsZero() }

// CompatibleWith reports whether values in u can be converted to o.
func (u Unit) CompatibleWith(o Unit) bool { return u.dim == o.dim }

// Equal reports whether u and o denote the same unit.
func (u Unit) Equal(o Unit) bool {
	return u.dim == o.dim && u.factor() == o.factor()
}

func (u Unit) factor() float64 {
	if u.scale == 0 {
		return 1
	}
	return u.scale
}

// Parse resolves a unit expression such as "km", "deg", "km/s" or "m*s^-2".
func Parse(expr string) (Unit, error) {
	s := strings.TrimSpace(expr)
	if u, ok := registry[strings.ToLower(s)]; ok {
		return u, nil
	}

	out := Unit{symbol: s, scale: 1}
	sign := int8(1)
	term := strings.Builder{}

	flush := func() error {
		tok := strings.TrimSpace(term.String())
		term.Reset()
		if tok == "" {
			return fmt.Errorf("%w: %q", ErrUnknownUnit, expr)
		}
		exp := int8(1)
		if i := strings.IndexAny(tok, "^"); i >= 0 {
			n, err := strconv.ParseInt(strings.TrimSpace(tok[i+1:]), 10, 8)
			if err != nil {
				return fmt.Errorf("%w: bad exponent in %q", ErrUnknownUnit, expr)
			}
			exp = int8(n)
			tok = strings.TrimSpace(tok[:i])
		} else if strings.HasSuffix(tok, "2") || strings.HasSuffix(tok, "3") {
			n := tok[len(tok)-1] - '0'
			if base, ok := registry[strings.ToLower(tok[:len(tok)-1])]; ok && !base.IsDimensionless() {
				exp = int8(n)
				tok = tok[:len(tok)-1]
			}
		}
		base, ok := registry[strings.ToLower(tok)]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownUnit, tok)
		}
		e := exp * sign
		out.dim = out.dim.add(base.dim.pow(e), 1)
		out.scale *= math.Pow(base.factor(), float64(e))
		return nil
	}

	for _, r := range s {
		switch r {
		case '*', '·':
			if err := flush(); err != nil {
				return Unit{}, err
			}
			sign = 1
		case '/':
			if err := flush(); err != nil {
				return Unit{}, err
			}
			sign = -1
		default:
			term.WriteRune(r)
		}
	}
	if err := flush(); err != nil {
		return Unit{}, err
	}
	return out, nil
}

// MustParse is Parse for package-level tables; it panics on error.
func MustParse(expr string) Unit {
	u, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}

// Convert expresses v (given in from) in to.
func Convert(v float64, from, to Unit) (float64, error) {
	if !from.CompatibleWith(to) {
		return 0, fmt.Errorf("%w: cannot convert %s to %s", ErrIncompatible, from, to)
	}
	if from.factor() == to.factor() {
		return v, nil
	}
	return v * from.factor() / to.factor(), nil
}

// Quantity is a magnitude paired with its unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q is shorthand for Quantity{v, u}.
func Q(v float64, u Unit) Quantity { return Quantity{Value: v, Unit: u} }

// To converts q into u.
func (q Quantity) To(u Unit) (Quantity, error) {
	v, err := Convert(q.Value, q.Unit, u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: u}, nil
}

func (q Quantity) String() string {
	if q.Unit.IsDimensionless() && q.Unit.symbol == "" {
		return strconv.FormatFloat(q.Value, 'g', -1, 64)
	}
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " " + q.Unit.String()
}
