package timeseries

import (
	"errors"
	"math"
	"testing"
	"time"
)

func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) || (!math.IsNaN(a[i]) && a[i] != b[i]) {
			return false
		}
	}
	return true
}

func TestDayIndexCalendar(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		day   int
		index float64
	}{
		{1899, time.December, 30, 0},
		{1900, time.March, 1, 61},
		{2000, time.January, 1, 36526},
		{2012, time.April, 1, 41000},
	}
	for _, tc := range tests {
		if got := FromDate(tc.year, tc.month, tc.day); got != tc.index {
			t.Errorf("FromDate(%d-%02d-%02d): expected %v, got %v", tc.year, tc.month, tc.day, tc.index, got)
		}
		// any time of the day falls on the same date
		y, m, d := Date(tc.index + 0.99)
		if y != tc.year || m != tc.month || d != tc.day {
			t.Errorf("Date(%v): expected %d-%02d-%02d, got %d-%02d-%02d", tc.index+0.99, tc.year, tc.month, tc.day, y, m, d)
		}
	}
}

func TestTimeConversion(t *testing.T) {
	want := time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
	got := ToTime(36526.5)
	if d := got.Sub(want); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("expected %v, got %v", want, got)
	}
	if idx := FromDate(2000, time.January, 1); idx != 36526 {
		t.Errorf("expected 36526, got %v", idx)
	}
	if n := DaysIn(2012, time.February); n != 29 {
		t.Errorf("expected 29 days in February 2012, got %d", n)
	}
}

func TestNew(t *testing.T) {
	tt := []float64{1, 2, 3}
	v := []float64{4, 5, 6}
	s, err := New(tt, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tt[0], v[0] = 100, 100
	if s.T[0] != 1 || s.V[0] != 4 {
		t.Error("series shares storage with its inputs")
	}

	if _, err := New([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := New([]float64{1, 1}, []float64{1, 2}); !errors.Is(err, ErrNotOrdered) {
		t.Errorf("expected ErrNotOrdered, got %v", err)
	}
}

func TestTrimAndSpan(t *testing.T) {
	nan := math.NaN()
	s, _ := New([]float64{0, 1, 2, 3, 4, 5}, []float64{nan, 1, nan, 2, nan, nan})
	tr := s.Trim()
	if !sameFloats(tr.T, []float64{1, 2, 3}) || !sameFloats(tr.V, []float64{1, nan, 2}) {
		t.Errorf("unexpected trim %v %v", tr.T, tr.V)
	}
	start, end, ok := tr.Span()
	if !ok || start != 1 || end != 3 {
		t.Errorf("unexpected span %v %v %v", start, end, ok)
	}

	empty, _ := New([]float64{0, 1}, []float64{nan, nan})
	if _, _, ok := empty.Trim().Span(); ok {
		t.Error("expected an all-missing series to trim to nothing")
	}
}

func TestIndexRange(t *testing.T) {
	s, _ := New([]float64{1, 2, 3, 4, 5}, make([]float64, 5))
	lo, hi := s.IndexRange(1.5, 4)
	if lo != 1 || hi != 4 {
		t.Errorf("expected [1,4), got [%d,%d)", lo, hi)
	}
}

func TestOnDays(t *testing.T) {
	nan := math.NaN()
	s, _ := New([]float64{10.25, 10.75, 11.5, 12, 14.9}, []float64{1, 3, nan, 5, 7})
	got := s.OnDays([]float64{10, 11, 12, 13, 14})
	want := []float64{2, nan, 5, nan, 7}
	if !sameFloats(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestHeadFromDepthAndOverlap(t *testing.T) {
	d, _ := New([]float64{1, 2}, []float64{3.5, math.NaN()})
	h := HeadFromDepth(d)
	if h.V[0] != -3.5 || !math.IsNaN(h.V[1]) || d.V[0] != 3.5 {
		t.Errorf("unexpected heads %v", h.V)
	}

	if s, e, ok := Overlap(0, 10, 5, 20); !ok || s != 5 || e != 10 {
		t.Errorf("unexpected overlap %v %v %v", s, e, ok)
	}
	if _, _, ok := Overlap(0, 4, 5, 20); ok {
		t.Error("expected disjoint spans")
	}
}

func testWeather(n int) Weather {
	w := Weather{Days: make([]float64, n), PET: make([]float64, n), Precip: make([]float64, n), Tavg: make([]float64, n)}
	for i := range w.Days {
		w.Days[i] = 40000 + float64(i)
		w.Precip[i] = float64(i)
	}
	return w
}

func TestWeatherValidate(t *testing.T) {
	if err := testWeather(10).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(w *Weather)
		want   error
	}{
		{name: "empty", mutate: func(w *Weather) { *w = Weather{} }, want: ErrWeatherGap},
		{name: "missing day", mutate: func(w *Weather) { w.Days[5] = w.Days[4] + 2 }, want: ErrWeatherGap},
		{name: "missing value", mutate: func(w *Weather) { w.Tavg[3] = math.NaN() }, want: ErrWeatherGap},
		{name: "fractional day", mutate: func(w *Weather) {
			for i := range w.Days {
				w.Days[i] += 0.5
			}
		}, want: ErrWeatherGap},
		{name: "short channel", mutate: func(w *Weather) { w.PET = w.PET[:9] }, want: ErrLengthMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := testWeather(10)
			tc.mutate(&w)
			if err := w.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestWeatherSlice(t *testing.T) {
	w := testWeather(10)
	s := w.Slice(2, 5)
	if !sameFloats(s.Precip, []float64{2, 3, 4}) || s.Days[0] != 40002 {
		t.Errorf("unexpected slice %+v", s)
	}
	if s.Rain != nil || s.Tmin != nil {
		t.Error("absent channels should stay absent")
	}
	s.Precip[0] = 99
	if w.Precip[2] != 2 {
		t.Error("slice shares storage with the record")
	}
}
