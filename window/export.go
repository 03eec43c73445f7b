package window

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/signalsfoundry/trajectory-segmenter/epoch"
)

// TimeFormat selects how interval bounds are rendered.
type TimeFormat string

const (
	// FormatISO renders bounds as UTC ISO8601 strings.
	FormatISO TimeFormat = "iso"
	// FormatET renders bounds as ET seconds past J2000.
	FormatET TimeFormat = "et"
)

// ParseTimeFormat validates a format name; the empty string selects ISO.
func ParseTimeFormat(s string) (TimeFormat, error) {
	switch TimeFormat(s) {
	case "", FormatISO:
		return FormatISO, nil
	case FormatET:
		return FormatET, nil
	default:
		return "", fmt.Errorf("unknown time format %q (want iso or et)", s)
	}
}

func (f TimeFormat) render(et float64) string {
	if f == FormatET {
		return epoch.FormatET(et)
	}
	return epoch.FormatISO(et)
}

// Row is one exported interval.
type Row struct {
	Start    string
	End      string
	Duration float64 // seconds
}

// Rows renders every interval as a Row.
func (w *Window) Rows(format TimeFormat) []Row {
	ivs := w.intervalsOrNil()
	rows := make([]Row, 0, len(ivs))
	for _, iv := range ivs {
		rows = append(rows, Row{
			Start:    format.render(iv.Start),
			End:      format.render(iv.End),
			Duration: iv.Duration(),
		})
	}
	return rows
}

// WriteCSV writes a "start,end,duration_s" table.
func (w *Window) WriteCSV(out io.Writer, format TimeFormat) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"start", "end", "duration_s"}); err != nil {
		return err
	}
	for _, r := range w.Rows(format) {
		if err := cw.Write([]string{r.Start, r.End, fmt.Sprintf("%.6f", r.Duration)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TimeRange is an interval expressed in calendar time.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// FromTimeRanges builds a window from calendar ranges. Zero start or end
// times are rejected with ErrUnresolvedBound.
func FromTimeRanges(ranges []TimeRange, opts ...Option) (*Window, error) {
	w := New(opts...)
	for i, r := range ranges {
		if r.Start.IsZero() || r.End.IsZero() {
			return nil, fmt.Errorf("%w: range %d has a zero bound", ErrUnresolvedBound, i)
		}
		if err := w.Insert(epoch.FromTime(r.Start), epoch.FromTime(r.End)); err != nil {
			return nil, fmt.Errorf("range %d: %w", i, err)
		}
	}
	return w, nil
}

// ToTimeRanges converts every interval back to UTC calendar time.
func (w *Window) ToTimeRanges() []TimeRange {
	ivs := w.intervalsOrNil()
	out := make([]TimeRange, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, TimeRange{Start: epoch.ToTime(iv.Start), End: epoch.ToTime(iv.End)})
	}
	return out
}
