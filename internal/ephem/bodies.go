package ephem

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownBody is returned for names missing from the registry.
	ErrUnknownBody = errors.New("unknown body")
	// ErrDuplicateBody is returned when a name is registered twice.
	ErrDuplicateBody = errors.New("body already registered")
)

// maxCenterDepth bounds center chains so a cycle cannot loop forever.
const maxCenterDepth = 16

// Body is a named object with a motion model relative to its Center. An
// empty Center is the inertial origin.
type Body struct {
	Name   string
	Center string
	// Radius is the mean radius in km; zero makes the body a point.
	Radius float64
	// Flattening of the body's reference ellipsoid, used for geodetic
	// coordinates.
	Flattening float64
	Motion     MotionModel
}

// Bodies is an in-memory, thread-safe registry of bodies keyed by upper-case
// name.
type Bodies struct {
	mu     sync.RWMutex
	bodies map[string]*Body
}

// NewBodies constructs an empty registry.
func NewBodies() *Bodies {
	return &Bodies{bodies: make(map[string]*Body)}
}

func key(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }

// Add registers b. It returns an error if the name already exists or the
// body has no motion model.
func (r *Bodies) Add(b Body) error {
	name := key(b.Name)
	if name == "" {
		return fmt.Errorf("%w: body without a name", ErrUnknownBody)
	}
	if b.Motion == nil {
		b.Motion = Fixed{}
	}
	if b.Radius < 0 {
		return fmt.Errorf("body %q: radius must not be negative", name)
	}
	b.Name, b.Center = name, key(b.Center)
	if b.Center == name {
		return fmt.Errorf("body %q cannot be its own center", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bodies[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateBody, name)
	}
	r.bodies[name] = &b
	return nil
}

// Get returns a copy of the named body.
func (r *Bodies) Get(name string) (Body, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[key(name)]
	if !ok {
		return Body{}, fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}
	return *b, nil
}

// Names lists registered bodies in sorted order.
func (r *Bodies) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bodies))
	for n := range r.bodies {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered bodies.
func (r *Bodies) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bodies)
}

// StateAt returns the inertial state of the named body, summing motion
// along its center chain.
func (r *Bodies) StateAt(name string, et float64) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total State
	cur := key(name)
	for depth := 0; cur != ""; depth++ {
		if depth >= maxCenterDepth {
			return State{}, fmt.Errorf("body %q: center chain too deep or cyclic", name)
		}
		b, ok := r.bodies[cur]
		if !ok {
			return State{}, fmt.Errorf("%w: %q", ErrUnknownBody, cur)
		}
		s, err := b.Motion.StateAt(et)
		if err != nil {
			return State{}, fmt.Errorf("body %q: %w", cur, err)
		}
		total.Pos = total.Pos.Add(s.Pos)
		total.Vel = total.Vel.Add(s.Vel)
		cur = b.Center
	}
	return total, nil
}
