package solar

import (
	"math"
	"testing"
)

func TestDayLength(t *testing.T) {
	tests := []struct {
		name      string
		dayOfYear int
		latitude  float64
		hours     float64
		tolerance float64
	}{
		{name: "equator", dayOfYear: 172, latitude: 0, hours: 12, tolerance: 1e-9},
		{name: "equator in winter", dayOfYear: 355, latitude: 0, hours: 12, tolerance: 1e-9},
		{name: "equinox at mid latitude", dayOfYear: 80, latitude: 45, hours: 12, tolerance: 0.1},
		{name: "Seattle summer solstice", dayOfYear: 172, latitude: 47.6, hours: 15.9, tolerance: 0.3},
		{name: "Seattle winter solstice", dayOfYear: 355, latitude: 47.6, hours: 8.1, tolerance: 0.3},
		{name: "southern summer", dayOfYear: 355, latitude: -47.6, hours: 15.9, tolerance: 0.3},
		{name: "polar day", dayOfYear: 172, latitude: 70, hours: 24, tolerance: 0},
		{name: "polar night", dayOfYear: 355, latitude: 70, hours: 0, tolerance: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DayLength(tc.dayOfYear, tc.latitude)
			if math.Abs(got-tc.hours) > tc.tolerance {
				t.Errorf("expected %.2f hours, got %.2f", tc.hours, got)
			}
		})
	}
}

func TestDeclinationRange(t *testing.T) {
	maxDecl := 23.45 * math.Pi / 180
	for doy := 1; doy <= 366; doy++ {
		if d := Declination(doy); math.Abs(d) > maxDecl+1e-3 {
			t.Fatalf("day %d: declination %.4f rad out of range", doy, d)
		}
	}
	if Declination(172) <= 0 || Declination(355) >= 0 {
		t.Error("expected a positive declination in June and a negative one in December")
	}
}
