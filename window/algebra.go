package window

import "fmt"

// Union returns the intervals covered by either window.
func Union(a, b *Window) *Window {
	x, y := a.intervalsOrNil(), b.intervalsOrNil()
	out := make([]Interval, 0, len(x)+len(y))
	i, j := 0, 0
	for i < len(x) || j < len(y) {
		var next Interval
		if j >= len(y) || (i < len(x) && x[i].Start <= y[j].Start) {
			next = x[i]
			i++
		} else {
			next = y[j]
			j++
		}
		out = appendMerged(out, next)
	}
	return &Window{intervals: out}
}

// Intersect returns the intervals covered by both windows. Overlaps that
// reduce to a single instant are dropped.
func Intersect(a, b *Window) *Window {
	x, y := a.intervalsOrNil(), b.intervalsOrNil()
	var out []Interval
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		lo := max(x[i].Start, y[j].Start)
		hi := min(x[i].End, y[j].End)
		out = appendMerged(out, Interval{Start: lo, End: hi})
		if x[i].End < y[j].End {
			i++
		} else {
			j++
		}
	}
	return &Window{intervals: out}
}

// Difference returns the parts of a not covered by b.
func Difference(a, b *Window) *Window {
	x, y := a.intervalsOrNil(), b.intervalsOrNil()
	var out []Interval
	j := 0
	for _, iv := range x {
		cur := iv.Start
		for j < len(y) && y[j].End <= cur {
			j++
		}
		for k := j; k < len(y) && y[k].Start < iv.End; k++ {
			out = appendMerged(out, Interval{Start: cur, End: y[k].Start})
			if y[k].End > cur {
				cur = y[k].End
			}
			if cur >= iv.End {
				break
			}
		}
		out = appendMerged(out, Interval{Start: cur, End: iv.End})
	}
	return &Window{intervals: out}
}

// Complement returns the gaps of w within [bound.Start, bound.End]. A nil
// bound means w's own hull. Complementing an empty window yields the hull of
// bound; an empty bound yields an empty window.
func (w *Window) Complement(bound *Window) *Window {
	if bound == nil {
		bound = w
	}
	start, ok := bound.Start()
	if !ok {
		return New()
	}
	end, _ := bound.End()
	return w.ComplementWithin(start, end)
}

// ComplementWithin returns the gaps of w within [start, end].
func (w *Window) ComplementWithin(start, end float64) *Window {
	if start >= end {
		return New()
	}
	hull := &Window{intervals: []Interval{{Start: start, End: end}}}
	return Difference(hull, w)
}

// Union is the method form of Union.
func (w *Window) Union(o *Window) *Window { return Union(w, o) }

// Intersect is the method form of Intersect.
func (w *Window) Intersect(o *Window) *Window { return Intersect(w, o) }

// Difference is the method form of Difference.
func (w *Window) Difference(o *Window) *Window { return Difference(w, o) }

// RemoveSmallIntervals drops, in place, every interval strictly shorter than
// minSize.
func (w *Window) RemoveSmallIntervals(minSize float64) {
	if minSize <= 0 || w.IsEmpty() {
		return
	}
	kept := w.intervals[:0]
	for _, iv := range w.intervals {
		if iv.Duration() >= minSize {
			kept = append(kept, iv)
		}
	}
	w.intervals = kept
}

// FillSmallGaps merges, in place, neighbouring intervals whose gap is
// strictly shorter than minGap.
func (w *Window) FillSmallGaps(minGap float64) {
	if minGap <= 0 || w.Len() < 2 {
		return
	}
	filled := w.intervals[:1]
	for _, iv := range w.intervals[1:] {
		last := &filled[len(filled)-1]
		if iv.Start-last.End < minGap {
			last.End = iv.End
			continue
		}
		filled = append(filled, iv)
	}
	w.intervals = filled
}

// Relation codes accepted by Compare.
const (
	RelEqual          = "="
	RelNotEqual       = "<>"
	RelProperSubset   = "<"
	RelSubset         = "<="
	RelProperSuperset = ">"
	RelSuperset       = ">="
	RelDisjoint       = "disjoint"
)

// Compare evaluates a relation between w and o:
//
//	"="        same set
//	"<>"       different sets
//	"<"        w is a proper subset of o
//	"<="       w is a subset of o
//	">"        w is a proper superset of o
//	">="       w is a superset of o
//	"disjoint" no common interval
func (w *Window) Compare(o *Window, rel string) (bool, error) {
	switch rel {
	case RelEqual:
		return w.Equal(o), nil
	case RelNotEqual:
		return !w.Equal(o), nil
	case RelProperSubset:
		return subset(w, o) && !w.Equal(o), nil
	case RelSubset:
		return subset(w, o), nil
	case RelProperSuperset:
		return subset(o, w) && !w.Equal(o), nil
	case RelSuperset:
		return subset(o, w), nil
	case RelDisjoint:
		return Intersect(w, o).IsEmpty(), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownRelation, rel)
	}
}

func subset(a, b *Window) bool {
	for _, iv := range a.intervalsOrNil() {
		if !b.Includes(iv.Start, iv.End) {
			return false
		}
	}
	return true
}
