// Package window implements time windows: ordered sets of disjoint closed
// intervals over continuous time (ET seconds) with set algebra.
//
// Every mutation keeps the intervals sorted and merged; intervals that touch
// are merged. Algebra operations return new windows and never modify their
// operands.
package window

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalsfoundry/trajectory-segmenter/epoch"
)

var (
	// ErrInvalidInterval is returned for intervals whose start is not before their end.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrUnresolvedBound is returned when a bound cannot be converted to ET.
	ErrUnresolvedBound = errors.New("unresolved interval bound")
	// ErrCapacityExceeded is returned when an insert would exceed a fixed capacity.
	ErrCapacityExceeded = errors.New("window capacity exceeded")
	// ErrIndexOutOfRange is returned by At for indexes past the end.
	ErrIndexOutOfRange = errors.New("interval index out of range")
	// ErrUnknownRelation is returned by Compare for unsupported relation codes.
	ErrUnknownRelation = errors.New("unknown window relation")
)

// Interval is a closed time interval [Start, End] in ET seconds.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns End-Start.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Contains reports whether t lies in the closed interval.
func (iv Interval) Contains(t float64) bool { return t >= iv.Start && t <= iv.End }

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s]", epoch.FormatISO(iv.Start), epoch.FormatISO(iv.End))
}

// Window is a sorted set of disjoint closed intervals.
type Window struct {
	intervals []Interval
	capacity  int
}

// Option configures a Window at construction.
type Option func(*Window)

// WithCapacity bounds the number of intervals the window may hold. Zero means
// unbounded.
func WithCapacity(n int) Option {
	return func(w *Window) {
		if n > 0 {
			w.capacity = n
			w.intervals = make([]Interval, 0, n)
		}
	}
}

// New returns an empty window.
func New(opts ...Option) *Window {
	w := &Window{}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FromIntervals builds a window by inserting each interval in turn.
func FromIntervals(intervals []Interval, opts ...Option) (*Window, error) {
	w := New(opts...)
	for _, iv := range intervals {
		if err := w.Insert(iv.Start, iv.End); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// MustFromIntervals is FromIntervals for literals in tests and tables.
func MustFromIntervals(intervals ...Interval) *Window {
	w, err := FromIntervals(intervals)
	if err != nil {
		panic(err)
	}
	return w
}

// FromBounds builds a single-interval window from any two values accepted by
// epoch.ToET (ISO strings, ET numbers, time.Time).
func FromBounds(start, end any) (*Window, error) {
	s, err := epoch.ToET(start)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %w", ErrUnresolvedBound, err)
	}
	e, err := epoch.ToET(end)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %w", ErrUnresolvedBound, err)
	}
	w := New()
	if err := w.Insert(s, e); err != nil {
		return nil, err
	}
	return w, nil
}

// Insert adds [start, end], merging with any overlapping or touching
// intervals.
func (w *Window) Insert(start, end float64) error {
	if !finite(start) || !finite(end) {
		return fmt.Errorf("%w: [%v, %v]", ErrUnresolvedBound, start, end)
	}
	if start >= end {
		return fmt.Errorf("%w: start %v is not before end %v", ErrInvalidInterval, start, end)
	}

	if n := len(w.intervals); n == 0 || start > w.intervals[n-1].End {
		if w.capacity > 0 && n+1 > w.capacity {
			return fmt.Errorf("%w: %d intervals, capacity %d", ErrCapacityExceeded, n+1, w.capacity)
		}
		w.intervals = append(w.intervals, Interval{Start: start, End: end})
		return nil
	}

	// first interval whose end reaches start
	lo := sort.Search(len(w.intervals), func(i int) bool { return w.intervals[i].End >= start })
	// first interval starting after end
	hi := sort.Search(len(w.intervals), func(i int) bool { return w.intervals[i].Start > end })

	merged := Interval{Start: start, End: end}
	if lo < hi {
		merged.Start = math.Min(merged.Start, w.intervals[lo].Start)
		merged.End = math.Max(merged.End, w.intervals[hi-1].End)
	}

	n := len(w.intervals) - (hi - lo) + 1
	if w.capacity > 0 && n > w.capacity {
		return fmt.Errorf("%w: %d intervals, capacity %d", ErrCapacityExceeded, n, w.capacity)
	}

	out := make([]Interval, 0, n)
	out = append(out, w.intervals[:lo]...)
	out = append(out, merged)
	out = append(out, w.intervals[hi:]...)
	w.intervals = out
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// appendMerged appends iv to a sorted, merged list, merging with the last
// element when they overlap or touch. Degenerate intervals are dropped.
func appendMerged(list []Interval, iv Interval) []Interval {
	if iv.End <= iv.Start {
		return list
	}
	if n := len(list); n > 0 && iv.Start <= list[n-1].End {
		if iv.End > list[n-1].End {
			list[n-1].End = iv.End
		}
		return list
	}
	return append(list, iv)
}

// Len returns the number of intervals.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.intervals)
}

// IsEmpty reports whether the window has no intervals.
func (w *Window) IsEmpty() bool { return w.Len() == 0 }

// Capacity returns the configured capacity (0 when unbounded).
func (w *Window) Capacity() int { return w.capacity }

// Start returns the start of the first interval.
func (w *Window) Start() (float64, bool) {
	if w.IsEmpty() {
		return 0, false
	}
	return w.intervals[0].Start, true
}

// End returns the end of the last interval.
func (w *Window) End() (float64, bool) {
	if w.IsEmpty() {
		return 0, false
	}
	return w.intervals[len(w.intervals)-1].End, true
}

// Intervals returns a copy of the intervals.
func (w *Window) Intervals() []Interval {
	if w.IsEmpty() {
		return nil
	}
	out := make([]Interval, len(w.intervals))
	copy(out, w.intervals)
	return out
}

// At returns the i-th interval as a singleton window.
func (w *Window) At(i int) (*Window, error) {
	if i < 0 || i >= w.Len() {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, w.Len())
	}
	return &Window{intervals: []Interval{w.intervals[i]}}, nil
}

// Measure returns the summed duration of all intervals.
func (w *Window) Measure() float64 {
	var total float64
	for _, iv := range w.intervalsOrNil() {
		total += iv.Duration()
	}
	return total
}

// Clone returns an independent copy of w without its capacity bound.
func (w *Window) Clone() *Window {
	return &Window{intervals: w.Intervals()}
}

// Equal reports whether w and o hold exactly the same intervals.
func (w *Window) Equal(o *Window) bool {
	a, b := w.intervalsOrNil(), o.intervalsOrNil()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (w *Window) intervalsOrNil() []Interval {
	if w == nil {
		return nil
	}
	return w.intervals
}

// Contains reports whether t lies in any interval (closed bounds).
func (w *Window) Contains(t float64) bool {
	ivs := w.intervalsOrNil()
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].End >= t })
	return i < len(ivs) && ivs[i].Start <= t
}

// Includes reports whether [start, end] lies entirely inside one interval.
func (w *Window) Includes(start, end float64) bool {
	if start > end {
		return false
	}
	ivs := w.intervalsOrNil()
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].End >= end })
	return i < len(ivs) && ivs[i].Start <= start
}

func (w *Window) String() string {
	start, ok := w.Start()
	if !ok {
		return "Window(empty)"
	}
	end, _ := w.End()
	return fmt.Sprintf("Window(%s to %s, N: %d)", epoch.FormatISO(start), epoch.FormatISO(end), w.Len())
}

// GoString lists every interval in ET seconds.
func (w *Window) GoString() string {
	var b strings.Builder
	b.WriteString("window{")
	for i, iv := range w.intervalsOrNil() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%g, %g]", iv.Start, iv.End)
	}
	b.WriteString("}")
	return b.String()
}
