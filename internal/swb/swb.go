// Package swb simulates the daily surface water budget: a degree-day snowpack
// feeding a readily-available soil storage (RAS) reservoir that splits the water
// reaching the ground into runoff, real evapotranspiration and recharge.
package swb

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParameters = errors.New("invalid surface water budget parameters")

// Params are the parameters of one simulation.
type Params struct {
	Tmelt  float64 // °C; precipitation falls as snow below this temperature
	CM     float64 // mm/°C/day degree-day melt coefficient
	Cru    float64 // runoff coefficient in [0,1]
	RASmax float64 // mm
}

// Validate checks parameter bounds
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.Cru) || p.Cru < 0 || p.Cru > 1:
		return fmt.Errorf("%w: Cru %v outside [0,1]", ErrInvalidParameters, p.Cru)
	case math.IsNaN(p.RASmax) || p.RASmax < 0:
		return fmt.Errorf("%w: RASmax %v is negative", ErrInvalidParameters, p.RASmax)
	case math.IsNaN(p.CM) || p.CM < 0:
		return fmt.Errorf("%w: CM %v is negative", ErrInvalidParameters, p.CM)
	case math.IsNaN(p.Tmelt):
		return fmt.Errorf("%w: Tmelt is NaN", ErrInvalidParameters)
	}
	return nil
}

// Result holds the parallel daily outputs of one simulation (mm or mm/day).
type Result struct {
	Recharge []float64
	Runoff   []float64
	ETR      []float64
	RAS      []float64 // storage at the end of each day
	Snowpack []float64 // snow water equivalent at the end of each day
	Surface  []float64 // rain plus melt reaching the ground surface
}

// Simulate runs one forward pass over equal-length daily PET, precipitation and
// average-temperature series. It keeps no state between calls.
func Simulate(pet, precip, tavg []float64, p Params) (Result, error) {
	n := len(precip)
	if len(pet) != n || len(tavg) != n {
		return Result{}, fmt.Errorf("swb: series lengths differ (pet %d, precip %d, tavg %d)", len(pet), n, len(tavg))
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		Recharge: make([]float64, n),
		Runoff:   make([]float64, n),
		ETR:      make([]float64, n),
		RAS:      make([]float64, n),
		Snowpack: make([]float64, n),
		Surface:  make([]float64, n),
	}

	ras, snow := 0.0, 0.0
	for i := 0; i < n; i++ {
		rain := precip[i]
		if tavg[i] < p.Tmelt {
			snow += precip[i]
			rain = 0
		}
		melt := math.Min(snow, p.CM*math.Max(tavg[i]-p.Tmelt, 0))
		snow -= melt

		input := rain + melt
		runoff := p.Cru * input
		s := ras + input - runoff

		etr := math.Max(math.Min(pet[i], s), 0)
		s -= etr

		rech := 0.0
		if s > p.RASmax {
			rech = s - p.RASmax
			s = p.RASmax
		}
		ras = s

		res.Recharge[i] = rech
		res.Runoff[i] = runoff
		res.ETR[i] = etr
		res.RAS[i] = ras
		res.Snowpack[i] = snow
		res.Surface[i] = input
	}
	return res, nil
}

// Balance returns the water-balance residual of day i:
// precip − runoff − ETR − recharge − ΔRAS − Δsnowpack.
func (r Result) Balance(precip []float64, i int) float64 {
	prevRAS, prevSnow := 0.0, 0.0
	if i > 0 {
		prevRAS, prevSnow = r.RAS[i-1], r.Snowpack[i-1]
	}
	return precip[i] - r.Runoff[i] - r.ETR[i] - r.Recharge[i] - (r.RAS[i] - prevRAS) - (r.Snowpack[i] - prevSnow)
}
