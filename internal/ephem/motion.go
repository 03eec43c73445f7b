package ephem

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/trajectory-segmenter/epoch"
)

// ErrPropagation is returned when a motion model cannot produce a state.
var ErrPropagation = errors.New("propagation failed")

// State is a position (km) and velocity (km/s) relative to a body's center.
type State struct {
	Pos Vec3
	Vel Vec3
}

// MotionModel gives a body's state at an ET, relative to its center body.
type MotionModel interface {
	StateAt(et float64) (State, error)
}

// Fixed keeps a body at a constant offset from its center.
type Fixed struct {
	Pos Vec3
}

func (m Fixed) StateAt(float64) (State, error) { return State{Pos: m.Pos}, nil }

// Linear moves a body in a straight line: Pos + Vel*(et - Epoch).
type Linear struct {
	Epoch float64
	Pos   Vec3
	Vel   Vec3
}

func (m Linear) StateAt(et float64) (State, error) {
	return State{Pos: m.Pos.Add(m.Vel.Scale(et - m.Epoch)), Vel: m.Vel}, nil
}

// Kepler propagates two-body motion from osculating elements. Angles are in
// radians, SemiMajorAxis in km and GM in km^3/s^2. Only elliptic orbits are
// supported.
type Kepler struct {
	Epoch         float64
	SemiMajorAxis float64
	Eccentricity  float64
	Inclination   float64
	RAAN          float64
	ArgPeriapsis  float64
	MeanAnomaly   float64
	GM            float64
}

// Validate rejects orbits the propagator cannot handle.
func (m Kepler) Validate() error {
	switch {
	case m.SemiMajorAxis <= 0:
		return fmt.Errorf("%w: semi-major axis must be positive", ErrPropagation)
	case m.Eccentricity < 0 || m.Eccentricity >= 1:
		return fmt.Errorf("%w: eccentricity %v outside [0, 1)", ErrPropagation, m.Eccentricity)
	case m.GM <= 0:
		return fmt.Errorf("%w: GM must be positive", ErrPropagation)
	}
	return nil
}

// Period returns the orbital period in seconds.
func (m Kepler) Period() float64 {
	return 2 * math.Pi * math.Sqrt(m.SemiMajorAxis*m.SemiMajorAxis*m.SemiMajorAxis/m.GM)
}

func (m Kepler) StateAt(et float64) (State, error) {
	if err := m.Validate(); err != nil {
		return State{}, err
	}
	a, e := m.SemiMajorAxis, m.Eccentricity
	n := math.Sqrt(m.GM / (a * a * a))
	M := math.Mod(m.MeanAnomaly+n*(et-m.Epoch), 2*math.Pi)

	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for i := 0; i < 50; i++ {
		dE := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < 1e-14 {
			break
		}
	}

	cosE, sinE := math.Cos(E), math.Sin(E)
	root := math.Sqrt(1 - e*e)
	// perifocal frame
	px, py := a*(cosE-e), a*root*sinE
	rdot := math.Sqrt(m.GM*a) / (a * (1 - e*cosE))
	vx, vy := -rdot*sinE, rdot*root*cosE

	return State{Pos: m.rotate(px, py), Vel: m.rotate(vx, vy)}, nil
}

// rotate maps a perifocal (x, y) vector into the inertial frame.
func (m Kepler) rotate(x, y float64) Vec3 {
	cO, sO := math.Cos(m.RAAN), math.Sin(m.RAAN)
	cw, sw := math.Cos(m.ArgPeriapsis), math.Sin(m.ArgPeriapsis)
	ci, si := math.Cos(m.Inclination), math.Sin(m.Inclination)
	return Vec3{
		X: (cO*cw-sO*sw*ci)*x + (-cO*sw-sO*cw*ci)*y,
		Y: (sO*cw+cO*sw*ci)*x + (-sO*sw+cO*cw*ci)*y,
		Z: (sw*si)*x + (cw*si)*y,
	}
}

// SGP4 propagates a two-line element set. go-satellite propagates at whole
// seconds; states in between come from cubic Hermite interpolation of the
// bracketing samples. Output is TEME, used here as the inertial frame.
type SGP4 struct {
	sat satellite.Satellite
}

// NewSGP4 parses a TLE. go-satellite aborts the process on malformed lines,
// so the layout is checked first.
func NewSGP4(line1, line2 string) (*SGP4, error) {
	line1, line2 = strings.TrimSpace(line1), strings.TrimSpace(line2)
	if err := validateTLE(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init code %d %s", ErrPropagation, sat.Error, sat.ErrorStr)
	}
	return &SGP4{sat: sat}, nil
}

func validateTLE(line1, line2 string) error {
	switch {
	case len(line1) != 69:
		return fmt.Errorf("%w: TLE line 1 has length %d, want 69", ErrPropagation, len(line1))
	case len(line2) != 69:
		return fmt.Errorf("%w: TLE line 2 has length %d, want 69", ErrPropagation, len(line2))
	case line1[0] != '1' || line2[0] != '2':
		return fmt.Errorf("%w: TLE lines must start with 1 and 2", ErrPropagation)
	}
	return nil
}

func (m *SGP4) sample(t time.Time) (State, error) {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	pos, vel := satellite.Propagate(m.sat, year, int(month), day, hour, minute, second)
	s := State{Pos: Vec3{pos.X, pos.Y, pos.Z}, Vel: Vec3{vel.X, vel.Y, vel.Z}}
	for _, c := range []float64{s.Pos.X, s.Pos.Y, s.Pos.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return State{}, fmt.Errorf("%w: sgp4 output is not finite at %s", ErrPropagation, t.Format(time.RFC3339))
		}
	}
	return s, nil
}

func (m *SGP4) StateAt(et float64) (State, error) {
	t0 := epoch.ToTime(et).UTC().Truncate(time.Second)
	t1 := t0.Add(time.Second)
	s0, err := m.sample(t0)
	if err != nil {
		return State{}, err
	}
	et0 := epoch.FromTime(t0)
	if et == et0 {
		return s0, nil
	}
	s1, err := m.sample(t1)
	if err != nil {
		return State{}, err
	}
	return hermite(s0, s1, et0, epoch.FromTime(t1), et), nil
}

// hermite interpolates position and velocity between two states.
func hermite(s0, s1 State, t0, t1, t float64) State {
	h := t1 - t0
	u := (t - t0) / h
	u2, u3 := u*u, u*u*u
	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2
	pos := s0.Pos.Scale(h00).Add(s0.Vel.Scale(h10 * h)).Add(s1.Pos.Scale(h01)).Add(s1.Vel.Scale(h11 * h))

	d00 := (6*u2 - 6*u) / h
	d10 := 3*u2 - 4*u + 1
	d01 := (-6*u2 + 6*u) / h
	d11 := 3*u2 - 2*u
	vel := s0.Pos.Scale(d00).Add(s0.Vel.Scale(d10)).Add(s1.Pos.Scale(d01)).Add(s1.Vel.Scale(d11))
	return State{Pos: pos, Vel: vel}
}
