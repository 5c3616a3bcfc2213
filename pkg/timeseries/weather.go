package timeseries

import (
	"errors"
	"fmt"
	"math"
)

var ErrWeatherGap = errors.New("weather series is not gap-free")

// Weather is a gap-free daily weather record. Days are consecutive integer day
// indices; fluxes are mm/day and temperatures °C. Gap filling happens upstream.
type Weather struct {
	Days   []float64 `json:"days" msgpack:"days"`
	PET    []float64 `json:"pet" msgpack:"pet"`
	Precip []float64 `json:"precip" msgpack:"precip"`
	Rain   []float64 `json:"rain,omitempty" msgpack:"rain,omitempty"`
	Tavg   []float64 `json:"tavg" msgpack:"tavg"`
	Tmin   []float64 `json:"tmin,omitempty" msgpack:"tmin,omitempty"`
	Tmax   []float64 `json:"tmax,omitempty" msgpack:"tmax,omitempty"`
}

// Len returns the number of days
func (w Weather) Len() int { return len(w.Days) }

// Validate checks that the channels the engine needs are aligned, daily and complete.
func (w Weather) Validate() error {
	n := len(w.Days)
	if n == 0 {
		return fmt.Errorf("%w: no days", ErrWeatherGap)
	}
	for name, ch := range map[string][]float64{"pet": w.PET, "precip": w.Precip, "tavg": w.Tavg} {
		if len(ch) != n {
			return fmt.Errorf("%w: %s has %d values for %d days", ErrLengthMismatch, name, len(ch), n)
		}
		for i, v := range ch {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s missing on day %.0f", ErrWeatherGap, name, w.Days[i])
			}
		}
	}
	if w.Days[0] != math.Floor(w.Days[0]) {
		return fmt.Errorf("%w: day %v is not a whole day index", ErrWeatherGap, w.Days[0])
	}
	for i := 1; i < n; i++ {
		if w.Days[i]-w.Days[i-1] != 1 {
			return fmt.Errorf("%w: day %.0f follows %.0f", ErrWeatherGap, w.Days[i], w.Days[i-1])
		}
	}
	return nil
}

// Slice returns the days [lo, hi) as a new Weather sharing no storage with w.
func (w Weather) Slice(lo, hi int) Weather {
	cp := func(s []float64) []float64 {
		if len(s) < hi {
			return nil
		}
		out := make([]float64, hi-lo)
		copy(out, s[lo:hi])
		return out
	}
	return Weather{
		Days:   cp(w.Days),
		PET:    cp(w.PET),
		Precip: cp(w.Precip),
		Rain:   cp(w.Rain),
		Tavg:   cp(w.Tavg),
		Tmin:   cp(w.Tmin),
		Tmax:   cp(w.Tmax),
	}
}
