// Package epoch converts between calendar times and continuous ephemeris
// time (ET): TDB seconds past the J2000 epoch (2000-01-01T12:00:00 TDB).
//
// UTC is mapped to TAI through the leap-second table, TAI to TT by the fixed
// 32.184 s offset, and TT to TDB with the two-term periodic approximation.
// The result agrees with kernel-driven conversions to well under a
// millisecond, which is below the default search tolerance.
package epoch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolvedTime is returned when a value cannot be turned into ET.
var ErrUnresolvedTime = errors.New("unresolved time")

const (
	// SecondsPerDay is the length of a Julian day in seconds.
	SecondsPerDay = 86400.0
	// J2000JD is the Julian date of the J2000 epoch.
	J2000JD = 2451545.0

	ttMinusTAI = 32.184
)

// j2000UTC is 2000-01-01T12:00:00 on the UTC calendar. Go times ignore leap
// seconds, so differences against it are leap-free and the accumulated
// offset is added back from the table below.
var j2000UTC = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

type leapEntry struct {
	from   time.Time
	offset float64 // TAI-UTC from this instant on
}

var leapSeconds = []leapEntry{
	{time.Date(1972, 1, 1, 0, 0, 0, 0, time.UTC), 10},
	{time.Date(1972, 7, 1, 0, 0, 0, 0, time.UTC), 11},
	{time.Date(1973, 1, 1, 0, 0, 0, 0, time.UTC), 12},
	{time.Date(1974, 1, 1, 0, 0, 0, 0, time.UTC), 13},
	{time.Date(1975, 1, 1, 0, 0, 0, 0, time.UTC), 14},
	{time.Date(1976, 1, 1, 0, 0, 0, 0, time.UTC), 15},
	{time.Date(1977, 1, 1, 0, 0, 0, 0, time.UTC), 16},
	{time.Date(1978, 1, 1, 0, 0, 0, 0, time.UTC), 17},
	{time.Date(1979, 1, 1, 0, 0, 0, 0, time.UTC), 18},
	{time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), 19},
	{time.Date(1981, 7, 1, 0, 0, 0, 0, time.UTC), 20},
	{time.Date(1982, 7, 1, 0, 0, 0, 0, time.UTC), 21},
	{time.Date(1983, 7, 1, 0, 0, 0, 0, time.UTC), 22},
	{time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC), 23},
	{time.Date(1988, 1, 1, 0, 0, 0, 0, time.UTC), 24},
	{time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 25},
	{time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), 26},
	{time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC), 27},
	{time.Date(1993, 7, 1, 0, 0, 0, 0, time.UTC), 28},
	{time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC), 29},
	{time.Date(1996, 1, 1, 0, 0, 0, 0, time.UTC), 30},
	{time.Date(1997, 7, 1, 0, 0, 0, 0, time.UTC), 31},
	{time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), 32},
	{time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC), 33},
	{time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC), 34},
	{time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC), 35},
	{time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC), 36},
	{time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), 37},
}

// DeltaAT returns TAI-UTC in seconds at t. Instants before 1972 use the
// first table entry.
func DeltaAT(t time.Time) float64 {
	t = t.UTC()
	offset := leapSeconds[0].offset
	for _, e := range leapSeconds {
		if t.Before(e.from) {
			break
		}
		offset = e.offset
	}
	return offset
}

// tdbMinusTT is the periodic TDB-TT term, in seconds, at ttSeconds past J2000.
func tdbMinusTT(ttSeconds float64) float64 {
	g := (357.53 + 0.98560028*(ttSeconds/SecondsPerDay)) * math.Pi / 180
	return 0.001657*math.Sin(g) + 0.000014*math.Sin(2*g)
}

// FromTime converts a UTC instant to ET.
func FromTime(t time.Time) float64 {
	utc := t.UTC()
	tt := utc.Sub(j2000UTC).Seconds() + DeltaAT(utc) + ttMinusTAI
	return tt + tdbMinusTT(tt)
}

// ToTime converts ET back to a UTC time.Time, accurate to the nanosecond
// except inside an inserted leap second.
func ToTime(et float64) time.Time {
	tt := et - tdbMinusTT(et)
	guess := j2000UTC.Add(seconds(tt - ttMinusTAI - DeltaAT(j2000UTC)))
	for i := 0; i < 2; i++ {
		guess = j2000UTC.Add(seconds(tt - ttMinusTAI - DeltaAT(guess)))
	}
	return guess
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-Jan-02 15:04:05",
	"2006 Jan 02 15:04:05",
}

// ParseTime parses an ISO8601-like string. Strings without an offset are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " UTC")
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrUnresolvedTime, s)
}

// Parse converts an ISO8601 string to ET. A string holding a bare number is
// taken to already be ET.
func Parse(s string) (float64, error) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return checkFinite(v)
	}
	t, err := ParseTime(s)
	if err != nil {
		return 0, err
	}
	return FromTime(t), nil
}

// ToET converts a string, number or time.Time into ET. Zero times, NaN and
// infinities are rejected with ErrUnresolvedTime.
func ToET(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return checkFinite(x)
	case float32:
		return checkFinite(float64(x))
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return Parse(x)
	case time.Time:
		if x.IsZero() {
			return 0, fmt.Errorf("%w: zero time", ErrUnresolvedTime)
		}
		return FromTime(x), nil
	case *time.Time:
		if x == nil {
			return 0, fmt.Errorf("%w: nil time", ErrUnresolvedTime)
		}
		return ToET(*x)
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrUnresolvedTime)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrUnresolvedTime, v)
	}
}

func checkFinite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite value %v", ErrUnresolvedTime, v)
	}
	return v, nil
}

// ISOLayout is the layout used by FormatISO.
const ISOLayout = "2006-01-02T15:04:05.000000Z"

// FormatISO renders ET as a UTC ISO8601 string with microseconds.
func FormatISO(et float64) string {
	return ToTime(et).Round(time.Microsecond).Format(ISOLayout)
}

// FormatET renders ET as a plain decimal number of seconds.
func FormatET(et float64) string {
	return strconv.FormatFloat(et, 'f', 6, 64)
}
