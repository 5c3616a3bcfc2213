// Package timeseries holds the day-indexed series shared by the recharge engine.
// A day index is a spreadsheet serial date: fractional days since 1899-12-30 00:00 UTC.
// Missing values are NaN.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// EpochJD is the Julian date of day index 0.
const EpochJD = 2415018.5

var (
	ErrLengthMismatch = errors.New("time and value arrays differ in length")
	ErrNotOrdered     = errors.New("time index is not strictly increasing")
)

// Series is an ordered sequence of (day index, value) pairs.
type Series struct {
	T []float64 `json:"t" msgpack:"t"`
	V []float64 `json:"v" msgpack:"v"`
}

// New validates t and v and returns a Series that owns copies of both.
func New(t, v []float64) (Series, error) {
	if len(t) != len(v) {
		return Series{}, fmt.Errorf("%w: %d times, %d values", ErrLengthMismatch, len(t), len(v))
	}
	for i := 1; i < len(t); i++ {
		if !(t[i] > t[i-1]) {
			return Series{}, fmt.Errorf("%w at position %d", ErrNotOrdered, i)
		}
	}
	s := Series{T: make([]float64, len(t)), V: make([]float64, len(v))}
	copy(s.T, t)
	copy(s.V, v)
	return s, nil
}

// Len returns the number of samples
func (s Series) Len() int { return len(s.T) }

// IsMissing reports whether v is the missing-data sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Trim drops leading and trailing runs of missing values.
func (s Series) Trim() Series {
	lo, hi := 0, len(s.V)
	for lo < hi && IsMissing(s.V[lo]) {
		lo++
	}
	for hi > lo && IsMissing(s.V[hi-1]) {
		hi--
	}
	return Series{T: s.T[lo:hi], V: s.V[lo:hi]}
}

// Span returns the first and last day index. ok is false for an empty series.
func (s Series) Span() (start, end float64, ok bool) {
	if len(s.T) == 0 {
		return 0, 0, false
	}
	return s.T[0], s.T[len(s.T)-1], true
}

// IndexRange returns the half-open index range of samples with start <= t <= end.
func (s Series) IndexRange(start, end float64) (int, int) {
	lo := sort.SearchFloat64s(s.T, start)
	hi := sort.Search(len(s.T), func(i int) bool { return s.T[i] > end })
	return lo, hi
}

// OnDays averages the samples falling on each calendar day of days (integer day
// indices). Days without a valid sample are NaN.
func (s Series) OnDays(days []float64) []float64 {
	sum := make(map[int64]float64, len(s.T))
	cnt := make(map[int64]int, len(s.T))
	for i, t := range s.T {
		if IsMissing(s.V[i]) {
			continue
		}
		d := int64(math.Floor(t))
		sum[d] += s.V[i]
		cnt[d]++
	}
	out := make([]float64, len(days))
	for i, d := range days {
		k := int64(math.Floor(d))
		if n := cnt[k]; n > 0 {
			out[i] = sum[k] / float64(n)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// HeadFromDepth converts depths below ground surface into heads (positive up).
func HeadFromDepth(depth Series) Series {
	h := Series{T: make([]float64, len(depth.T)), V: make([]float64, len(depth.V))}
	copy(h.T, depth.T)
	for i, v := range depth.V {
		h.V[i] = -v
	}
	return h
}

// Overlap returns the common day-index interval of two spans.
func Overlap(aStart, aEnd, bStart, bEnd float64) (float64, float64, bool) {
	start := math.Max(aStart, bStart)
	end := math.Min(aEnd, bEnd)
	return start, end, start <= end
}

// ToTime converts a day index to a UTC time.
func ToTime(day float64) time.Time {
	return julian.JDToTime(day + EpochJD).UTC()
}

// FromDate returns the day index of midnight UTC on the given Gregorian date.
func FromDate(year int, month time.Month, day int) float64 {
	return julian.CalendarGregorianToJD(year, int(month), float64(day)) - EpochJD
}

// Date returns the Gregorian calendar date containing the day index.
func Date(day float64) (int, time.Month, int) {
	y, m, d := julian.JDToCalendar(math.Floor(day) + EpochJD)
	return y, time.Month(m), int(math.Floor(d + 1e-9))
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
