package ephem

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/epoch"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/units"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

const earthGM = 398600.4418

var orbit = Kepler{SemiMajorAxis: 7000, Eccentricity: 0.1, GM: earthGM}

func mustAdd(t *testing.T, r *Bodies, b Body) {
	t.Helper()
	if err := r.Add(b); err != nil {
		t.Fatalf("Add(%s): %v", b.Name, err)
	}
}

func orbitBodies(t *testing.T) *Bodies {
	t.Helper()
	r := NewBodies()
	mustAdd(t, r, Body{Name: "earth", Radius: 6371, Flattening: 1 / 298.257})
	mustAdd(t, r, Body{Name: "sun", Radius: 696000, Motion: Fixed{Pos: Vec3{X: 1.496e8}}})
	mustAdd(t, r, Body{Name: "sc", Center: "earth", Motion: orbit})
	return r
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func newTestDispatcher(t *testing.T, e *Engine, step float64) *solver.Dispatcher {
	t.Helper()
	cfg := solver.DefaultConfig()
	cfg.Step = step
	cfg.Tolerance = 1e-3
	d, err := solver.NewDispatcher(e, solver.WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestKeplerPeriapsisState(t *testing.T) {
	s, err := orbit.StateAt(0)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if !near(s.Pos.X, 6300, 1e-6) || !near(s.Pos.Y, 0, 1e-6) || !near(s.Pos.Z, 0, 1e-6) {
		t.Fatalf("periapsis position = %+v", s.Pos)
	}
	wantSpeed := math.Sqrt(earthGM/7000) * math.Sqrt(1.1/0.9)
	if !near(s.Vel.Norm(), wantSpeed, 1e-9) {
		t.Fatalf("periapsis speed = %v, want %v", s.Vel.Norm(), wantSpeed)
	}

	half, err := orbit.StateAt(orbit.Period() / 2)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if !near(half.Pos.Norm(), 7700, 1e-6) {
		t.Fatalf("apoapsis radius = %v, want 7700", half.Pos.Norm())
	}
}

func TestKeplerRejectsHyperbolicOrbit(t *testing.T) {
	bad := orbit
	bad.Eccentricity = 1.2
	if _, err := bad.StateAt(0); !errors.Is(err, ErrPropagation) {
		t.Fatalf("err = %v, want ErrPropagation", err)
	}
}

func TestHermiteIsExactForLinearMotion(t *testing.T) {
	s0 := State{Pos: Vec3{X: 1}, Vel: Vec3{X: 2}}
	s1 := State{Pos: Vec3{X: 3}, Vel: Vec3{X: 2}}
	got := hermite(s0, s1, 10, 11, 10.25)
	if !near(got.Pos.X, 1.5, 1e-12) || !near(got.Vel.X, 2, 1e-12) {
		t.Fatalf("hermite = %+v", got)
	}
}

func TestSGP4(t *testing.T) {
	tle1 := "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	tle2 := "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
	m, err := NewSGP4(tle1, tle2)
	if err != nil {
		t.Fatalf("NewSGP4: %v", err)
	}
	et := epoch.FromTime(time.Date(2021, time.October, 2, 14, 11, 0, 0, time.UTC))

	for _, dt := range []float64{0, 0.5, 60.25} {
		s, err := m.StateAt(et + dt)
		if err != nil {
			t.Fatalf("StateAt(+%v): %v", dt, err)
		}
		if r := s.Pos.Norm(); r < 6600 || r > 6900 {
			t.Fatalf("radius at +%v = %v km", dt, r)
		}
		if v := s.Vel.Norm(); v < 7.5 || v > 7.8 {
			t.Fatalf("speed at +%v = %v km/s", dt, v)
		}
	}

	if _, err := NewSGP4("1 short", tle2); !errors.Is(err, ErrPropagation) {
		t.Fatalf("err = %v, want ErrPropagation", err)
	}
}

func TestBodiesRegistry(t *testing.T) {
	r := orbitBodies(t)
	if err := r.Add(Body{Name: "EARTH"}); !errors.Is(err, ErrDuplicateBody) {
		t.Fatalf("err = %v, want ErrDuplicateBody", err)
	}
	if _, err := r.Get("pluto"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("err = %v, want ErrUnknownBody", err)
	}
	mustAdd(t, r, Body{Name: "orphan", Center: "nowhere"})
	if _, err := r.StateAt("orphan", 0); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("err = %v, want ErrUnknownBody", err)
	}

	mustAdd(t, r, Body{Name: "moonlet", Center: "sc", Motion: Fixed{Pos: Vec3{Z: 10}}})
	s, err := r.StateAt("moonlet", 0)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if !near(s.Pos.X, 6300, 1e-6) || !near(s.Pos.Z, 10, 1e-12) {
		t.Fatalf("chained state = %+v", s.Pos)
	}
	if got := r.Names(); len(got) != 5 || got[0] != "EARTH" {
		t.Fatalf("Names = %v", got)
	}
}

func TestEvaluateQuantities(t *testing.T) {
	r := NewBodies()
	mustAdd(t, r, Body{Name: "earth", Radius: 6371})
	mustAdd(t, r, Body{Name: "sun", Radius: 696000, Motion: Fixed{Pos: Vec3{X: 1e8}}})
	mustAdd(t, r, Body{Name: "sc", Motion: Linear{Pos: Vec3{Y: 10000}, Vel: Vec3{Y: 1}}})
	e := NewEngine(r, logging.Noop())
	obs := core.Observation{Observer: "SC", Target: "EARTH"}

	cases := []struct {
		name string
		req  core.QuantityRequest
		want float64
		tol  float64
	}{
		{"distance", core.QuantityRequest{Quantity: core.QuantityDistance}, 10000, 1e-9},
		{"range rate", core.QuantityRequest{Quantity: core.QuantityRangeRate}, 1, 1e-12},
		{"angular size", core.QuantityRequest{Quantity: core.QuantityAngularSize}, 2 * math.Asin(0.6371), 1e-12},
		{"phase", core.QuantityRequest{Quantity: core.QuantityPhaseAngle, Illuminator: "SUN"}, math.Pi / 2, 1e-9},
		{"emission", core.QuantityRequest{Quantity: core.QuantityIlluminationAngle, Illuminator: "SUN", AngleType: core.IlluminationEmission}, 0, 1e-12},
		{"incidence", core.QuantityRequest{Quantity: core.QuantityIlluminationAngle, Illuminator: "SUN", AngleType: core.IlluminationIncidence}, math.Pi / 2, 1e-4},
		{"point separation", core.QuantityRequest{Quantity: core.QuantityAngularSeparation, Target2: "SUN", Shape1: core.ShapePoint, Shape2: core.ShapePoint}, math.Atan2(1e8, 10000), 1e-9},
		{"limb separation", core.QuantityRequest{Quantity: core.QuantityAngularSeparation, Target2: "SUN", Shape1: core.ShapeSphere, Shape2: core.ShapePoint}, math.Atan2(1e8, 10000) - math.Asin(0.6371), 1e-9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			req.Observation = obs
			v, err := e.EvaluateQuantity(req, 0)
			if err != nil {
				t.Fatalf("EvaluateQuantity: %v", err)
			}
			if !near(v.Scalar, tc.want, tc.tol) {
				t.Fatalf("%s = %v, want %v", tc.name, v.Scalar, tc.want)
			}
		})
	}

	pos, err := e.EvaluateQuantity(core.QuantityRequest{Quantity: core.QuantityPosition, Observation: obs}, 0)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Kind != core.KindVector || !near(pos.Vector[1], -10000, 1e-9) {
		t.Fatalf("position = %+v", pos)
	}

	bad := core.QuantityRequest{Quantity: core.QuantityDistance, Observation: core.Observation{Observer: "SC", Target: "EARTH", Frame: "IAU_EARTH"}}
	if _, err := e.EvaluateQuantity(bad, 0); !errors.Is(err, ErrUnsupportedFrame) {
		t.Fatalf("err = %v, want ErrUnsupportedFrame", err)
	}
}

func TestLightTimeCorrection(t *testing.T) {
	r := NewBodies()
	mustAdd(t, r, Body{Name: "obs"})
	mustAdd(t, r, Body{Name: "lander", Motion: Linear{Pos: Vec3{X: 300000}, Vel: Vec3{Y: 10}}})
	e := NewEngine(r, nil)

	geometric, err := e.EvaluateQuantity(core.QuantityRequest{
		Quantity:    core.QuantityDistance,
		Observation: core.Observation{Observer: "OBS", Target: "LANDER", Aberration: core.AbcorrNone},
	}, 0)
	if err != nil {
		t.Fatalf("EvaluateQuantity: %v", err)
	}
	corrected, err := e.EvaluateQuantity(core.QuantityRequest{
		Quantity:    core.QuantityDistance,
		Observation: core.Observation{Observer: "OBS", Target: "LANDER", Aberration: core.AbcorrLT},
	}, 0)
	if err != nil {
		t.Fatalf("EvaluateQuantity: %v", err)
	}
	if geometric.Scalar != 300000 {
		t.Fatalf("geometric distance = %v", geometric.Scalar)
	}
	want := math.Hypot(300000, 10*300000/SpeedOfLight)
	if !near(corrected.Scalar, want, 1e-6) {
		t.Fatalf("corrected distance = %v, want %v", corrected.Scalar, want)
	}
}

// TestDistanceSearchMatchesDenseSampling solves distance < 7000 km on an
// eccentric orbit and checks the result against direct evaluation.
func TestDistanceSearchMatchesDenseSampling(t *testing.T) {
	e := NewEngine(orbitBodies(t), logging.Noop())
	d := newTestDispatcher(t, e, 300)
	b := core.NewBuilder(logging.Noop())
	dist := core.NewDistance(e, core.Observation{Observer: "EARTH", Target: "SC"})
	c := b.MustCompare(dist, "<", units.Q(7000, units.Kilometer))
	w := window.MustFromIntervals(window.Interval{Start: 0, End: 20000})

	res, err := d.Solve(context.Background(), c, w)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Len() < 3 || res.Len() > 5 {
		t.Fatalf("expected one window per periapsis pass, got %v", res.GoString())
	}

	for _, iv := range res.Intervals() {
		for _, edge := range []float64{iv.Start, iv.End} {
			if edge == 0 || edge == 20000 {
				continue
			}
			v, err := dist.ValueAt(edge)
			if err != nil {
				t.Fatalf("ValueAt: %v", err)
			}
			if !near(v.Scalar, 7000, 0.01) {
				t.Fatalf("boundary %v has distance %v", edge, v.Scalar)
			}
		}
	}

	for ts := 0.0; ts <= 20000; ts += 10 {
		v, err := dist.ValueAt(ts)
		if err != nil {
			t.Fatalf("ValueAt: %v", err)
		}
		if near(v.Scalar, 7000, 1) {
			continue
		}
		if got, want := res.Contains(ts), v.Scalar < 7000; got != want {
			t.Fatalf("t=%v distance=%v: in result %v, want %v", ts, v.Scalar, got, want)
		}
	}

	inv, err := d.Solve(context.Background(), core.Not(c), w)
	if err != nil {
		t.Fatalf("Solve inverted: %v", err)
	}
	if !window.Union(res, inv).Equal(w) {
		t.Fatalf("result and inversion do not tile the window")
	}
	if overlap := window.Intersect(res, inv); overlap.Measure() > 0 {
		t.Fatalf("result and inversion overlap: %v", overlap.GoString())
	}
}

// TestDistanceBelow1000KmOverAYear runs the default step over a full year
// of an eccentric ten-day orbit.
func TestDistanceBelow1000KmOverAYear(t *testing.T) {
	const (
		a      = 1200.0
		period = 10 * 86400.0
	)
	r := NewBodies()
	mustAdd(t, r, Body{Name: "rock", Radius: 300})
	start, err := epoch.ToET("2030-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ToET: %v", err)
	}
	gm := 4 * math.Pi * math.Pi * a * a * a / (period * period)
	mustAdd(t, r, Body{Name: "lander", Center: "rock", Motion: Kepler{
		Epoch:         start,
		SemiMajorAxis: a,
		Eccentricity:  0.5,
		Inclination:   0.3,
		RAAN:          1.1,
		ArgPeriapsis:  0.4,
		GM:            gm,
	}})
	e := NewEngine(r, logging.Noop())
	d, err := solver.NewDispatcher(e)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	w, err := window.FromBounds("2030-01-01T00:00:00Z", "2031-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("FromBounds: %v", err)
	}
	dist := core.NewDistance(e, core.Observation{Observer: "rock", Target: "lander"})
	c := core.NewBuilder(logging.Noop()).MustCompare(dist, "<", units.Q(1000, units.Kilometer))

	res, err := d.Solve(context.Background(), c, w)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if n := res.Len(); n < 36 || n > 38 {
		t.Fatalf("expected one window per orbit, got %d", n)
	}

	end, _ := w.End()
	for _, iv := range res.Intervals() {
		for _, edge := range []float64{iv.Start, iv.End} {
			if edge == start || edge == end {
				continue
			}
			v, err := dist.ValueAt(edge)
			if err != nil {
				t.Fatalf("ValueAt: %v", err)
			}
			if !near(v.Scalar, 1000, 0.01) {
				t.Fatalf("boundary %s has distance %v", epoch.FormatISO(edge), v.Scalar)
			}
		}
	}
	for ts := start; ts <= end; ts += 600 {
		v, err := dist.ValueAt(ts)
		if err != nil {
			t.Fatalf("ValueAt: %v", err)
		}
		if near(v.Scalar, 1000, 1) {
			continue
		}
		if got, want := res.Contains(ts), v.Scalar < 1000; got != want {
			t.Fatalf("%s distance=%v: in result %v, want %v", epoch.FormatISO(ts), v.Scalar, got, want)
		}
	}
}

func TestLocalMaximumSearch(t *testing.T) {
	e := NewEngine(orbitBodies(t), logging.Noop())
	d := newTestDispatcher(t, e, 300)
	b := core.NewBuilder(logging.Noop())
	dist := core.NewDistance(e, core.Observation{Observer: "EARTH", Target: "SC"})
	c, err := b.Extremum(dist, core.LocalMaximum, 0)
	if err != nil {
		t.Fatalf("Extremum: %v", err)
	}

	res, err := d.Solve(context.Background(), c, window.MustFromIntervals(window.Interval{Start: 0, End: 20000}))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	period := orbit.Period()
	var want []float64
	for k := 0.5; k*period < 20000; k++ {
		want = append(want, k*period)
	}
	got := res.Intervals()
	if len(got) != len(want) {
		t.Fatalf("got %v, want apoapses at %v", res.GoString(), want)
	}
	for i, iv := range got {
		mid := iv.Start + iv.Duration()/2
		if !near(mid, want[i], 1) {
			t.Fatalf("apoapsis %d at %v, want %v", i, mid, want[i])
		}
	}
}

func TestAbsoluteMinimumWithAdjust(t *testing.T) {
	e := NewEngine(orbitBodies(t), logging.Noop())
	d := newTestDispatcher(t, e, 300)
	b := core.NewBuilder(logging.Noop())
	dist := core.NewDistance(e, core.Observation{Observer: "EARTH", Target: "SC"})
	w := window.MustFromIntervals(window.Interval{Start: 1000, End: 12000})

	exact, err := b.Extremum(dist, core.AbsoluteMinimum, 0)
	if err != nil {
		t.Fatalf("Extremum: %v", err)
	}
	res, err := d.Solve(context.Background(), exact, w)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Len() != 1 {
		t.Fatalf("expected a single minimum, got %v", res.GoString())
	}
	start, _ := res.Start()
	v, err := dist.ValueAt(start)
	if err != nil {
		t.Fatalf("ValueAt: %v", err)
	}
	if !near(v.Scalar, 6300, 0.01) {
		t.Fatalf("absolute minimum distance = %v, want 6300", v.Scalar)
	}

	banded, err := b.Extremum(dist, core.AbsoluteMinimum, 100)
	if err != nil {
		t.Fatalf("Extremum: %v", err)
	}
	res, err = d.Solve(context.Background(), banded, w)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Len() != 2 {
		t.Fatalf("expected both periapsis passes within the band, got %v", res.GoString())
	}
	for _, iv := range res.Intervals() {
		v, err := dist.ValueAt(iv.Start + iv.Duration()/2)
		if err != nil {
			t.Fatalf("ValueAt: %v", err)
		}
		if v.Scalar > 6400 {
			t.Fatalf("interval %v has midpoint distance %v", iv, v.Scalar)
		}
	}
}

func occultationBodies(t *testing.T) *Bodies {
	t.Helper()
	r := NewBodies()
	mustAdd(t, r, Body{Name: "obs"})
	mustAdd(t, r, Body{Name: "moon", Radius: 100, Motion: Fixed{Pos: Vec3{X: 1000}}})
	mustAdd(t, r, Body{Name: "sun", Radius: 200, Motion: Linear{Pos: Vec3{X: 10000, Y: -5000}, Vel: Vec3{Y: 1}}})
	return r
}

func TestEvaluateOccultation(t *testing.T) {
	e := NewEngine(occultationBodies(t), nil)
	g := core.OccultationGeometry{Observer: "OBS", Front: "MOON", Back: "SUN", FrontShape: core.ShapeSphere, BackShape: core.ShapeSphere}

	cases := []struct {
		et   float64
		want core.OccultationType
	}{
		{0, core.OccultationNone},
		{5000, core.OccultationFull},
		{5000 + 1000, core.OccultationPartial},
	}
	for _, tc := range cases {
		got, err := e.EvaluateOccultation(g, tc.et)
		if err != nil {
			t.Fatalf("EvaluateOccultation(%v): %v", tc.et, err)
		}
		if got != tc.want {
			t.Fatalf("occultation at %v = %s, want %s", tc.et, got, tc.want)
		}
	}

	// the far body cannot hide the near one
	swapped := core.OccultationGeometry{Observer: "OBS", Front: "SUN", Back: "MOON"}
	if got, _ := e.EvaluateOccultation(swapped, 5000); got != core.OccultationNone {
		t.Fatalf("swapped occultation = %s, want NONE", got)
	}
}

func TestOccultationSearch(t *testing.T) {
	e := NewEngine(occultationBodies(t), logging.Noop())
	d := newTestDispatcher(t, e, 60)
	b := core.NewBuilder(logging.Noop())
	occ := core.NewOccultation(e, core.OccultationGeometry{Observer: "obs", Front: "moon", Back: "sun", FrontShape: core.ShapeSphere, BackShape: core.ShapeSphere})
	w := window.MustFromIntervals(window.Interval{Start: 0, End: 10000})

	anyOcc, err := d.Solve(context.Background(), b.MustCompare(occ, "==", core.OccultationAny), w)
	if err != nil {
		t.Fatalf("Solve ANY: %v", err)
	}
	full, err := d.Solve(context.Background(), b.MustCompare(occ, "==", core.OccultationFull), w)
	if err != nil {
		t.Fatalf("Solve FULL: %v", err)
	}
	partial, err := d.Solve(context.Background(), b.MustCompare(occ, "==", core.OccultationPartial), w)
	if err != nil {
		t.Fatalf("Solve PARTIAL: %v", err)
	}

	if anyOcc.Len() != 1 || full.Len() != 1 || partial.Len() != 2 {
		t.Fatalf("any %v full %v partial %v", anyOcc.GoString(), full.GoString(), partial.GoString())
	}
	for name, win := range map[string]*window.Window{"any": anyOcc, "full": full} {
		start, _ := win.Start()
		end, _ := win.End()
		if !near((start+end)/2, 5000, 0.01) {
			t.Fatalf("%s window %v not centred on 5000", name, win.GoString())
		}
	}
	if ok, _ := full.Compare(anyOcc, window.RelProperSubset); !ok {
		t.Fatalf("full %v is not inside any %v", full.GoString(), anyOcc.GoString())
	}
	if !near(window.Union(full, partial).Measure(), anyOcc.Measure(), 0.01) {
		t.Fatalf("full and partial do not make up any")
	}
}

type countingReporter struct {
	starts, ends int
	last         float64
	seen         []float64
}

func (r *countingReporter) OnSearchStart(string) { r.starts++ }
func (r *countingReporter) OnSearchProgress(f float64) {
	r.last = f
	r.seen = append(r.seen, f)
}
func (r *countingReporter) OnSearchEnd() { r.ends++ }

func TestAdjustedExtremumProgressSpansBothPasses(t *testing.T) {
	e := NewEngine(orbitBodies(t), nil)
	var params solver.EventParams
	for _, kv := range [][2]string{
		{solver.ParamTarget, "SC"},
		{solver.ParamObserver, "EARTH"},
		{solver.ParamAbcorr, "NONE"},
		{solver.ParamFrame, "J2000"},
	} {
		if err := params.SetString(kv[0], kv[1]); err != nil {
			t.Fatalf("SetString: %v", err)
		}
	}
	params.Quantity = "DISTANCE"
	params.Operator = solver.RelationAbsMin
	params.Adjust = 100

	rep := &countingReporter{}
	_, err := e.SearchScalar(context.Background(), solver.ScalarSearch{
		SearchControl: solver.SearchControl{
			Confinement: window.MustFromIntervals(window.Interval{Start: 1000, End: 12000}),
			Step:        solver.ConstantStep(300),
			Refine:      solver.Bisect,
			Tolerance:   1e-3,
			Reporter:    rep,
		},
		Params: params,
	})
	if err != nil {
		t.Fatalf("SearchScalar: %v", err)
	}
	if rep.starts != 1 || rep.ends != 1 {
		t.Fatalf("reporter = %+v", rep)
	}
	halfway := false
	for i, f := range rep.seen {
		if i > 0 && f < rep.seen[i-1] {
			t.Fatalf("progress went back from %v to %v", rep.seen[i-1], f)
		}
		if near(f, 0.5, 1e-9) {
			halfway = true
		}
	}
	if !halfway || !near(rep.last, 1, 1e-9) {
		t.Fatalf("progress = %v, want the first pass to end at 0.5 and the second at 1", rep.seen)
	}
}

func TestSearchReportsProgressAndStopsOnCancel(t *testing.T) {
	e := NewEngine(orbitBodies(t), nil)
	var params solver.EventParams
	for _, kv := range [][2]string{
		{solver.ParamTarget, "SC"},
		{solver.ParamObserver, "EARTH"},
		{solver.ParamAbcorr, "NONE"},
		{solver.ParamFrame, "J2000"},
	} {
		if err := params.SetString(kv[0], kv[1]); err != nil {
			t.Fatalf("SetString: %v", err)
		}
	}
	params.Quantity = "DISTANCE"
	params.Operator = solver.RelationGreater
	params.RefValue = 7000

	rep := &countingReporter{}
	req := solver.ScalarSearch{
		SearchControl: solver.SearchControl{
			Confinement: window.MustFromIntervals(window.Interval{Start: 0, End: 6000}),
			Step:        solver.ConstantStep(300),
			Refine:      solver.Bisect,
			Tolerance:   1e-3,
			Reporter:    rep,
		},
		Params: params,
	}
	if _, err := e.SearchScalar(context.Background(), req); err != nil {
		t.Fatalf("SearchScalar: %v", err)
	}
	if rep.starts != 1 || rep.ends != 1 || rep.last != 1 {
		t.Fatalf("reporter = %+v", rep)
	}

	calls := 0
	req.Cancelled = func() bool { calls++; return calls > 3 }
	if _, err := e.SearchScalar(context.Background(), req); !errors.Is(err, solver.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}

	req.Cancelled = nil
	req.MaxIntervals = 1
	req.Confinement = window.MustFromIntervals(window.Interval{Start: 0, End: 20000})
	if _, err := e.SearchScalar(context.Background(), req); !errors.Is(err, ErrResultOverflow) {
		t.Fatalf("err = %v, want ErrResultOverflow", err)
	}
}
