// Package hydrograph predicts water levels from recharge and recession
// coefficients, and calibrates the specific yield against an observed hydrograph.
package hydrograph

import "math"

// Recession holds the master recession curve coefficients of dh/dt = -A·h + B.
// A is in 1/day, B in m/day.
type Recession struct {
	A float64 `json:"a" msgpack:"a"`
	B float64 `json:"b" msgpack:"b"`
}

// Valid reports whether both coefficients are finite and A is not negative.
func (r Recession) Valid() bool {
	if math.IsNaN(r.B) || math.IsInf(r.B, 0) || math.IsInf(r.A, 0) {
		return false
	}
	return r.A >= 0
}

// Predict runs the implicit recursion
//
//	h[i] = ((1 - A·dt/2)·h[i-1] + (B + R[i]/Sy)·dt) / (1 + A·dt/2)
//
// over the time base t (days). R is recharge in mm/day and may be nil. At every
// index in breaks the level is reseeded to obs; indices before the first break are NaN.
func Predict(t, obs, recharge []float64, sy float64, rc Recession, breaks []int) []float64 {
	n := len(t)
	h := make([]float64, n)
	isBreak := breakSet(breaks, n)

	started := false
	for i := 0; i < n; i++ {
		if isBreak[i] {
			h[i] = obs[i]
			started = true
			continue
		}
		if !started {
			h[i] = math.NaN()
			continue
		}
		dt := t[i] - t[i-1]
		a := rc.A * dt / 2
		q := 0.0
		if recharge != nil {
			q = recharge[i] / 1000 / sy
		}
		h[i] = ((1-a)*h[i-1] + (rc.B+q)*dt) / (1 + a)
	}
	return h
}

// Sensitivities returns dh/dA and dh/dB along a prediction h made by Predict
// with the same t, rc and breaks. Both derivatives are zero at breaks.
func Sensitivities(t, h []float64, rc Recession, breaks []int) (dA, dB []float64) {
	n := len(t)
	dA, dB = make([]float64, n), make([]float64, n)
	isBreak := breakSet(breaks, n)

	started := false
	for i := 0; i < n; i++ {
		if isBreak[i] {
			started = true
			continue
		}
		if !started {
			continue
		}
		dt := t[i] - t[i-1]
		a := rc.A * dt / 2
		dB[i] = ((1-a)*dB[i-1] + dt) / (1 + a)
		dA[i] = ((1-a)*dA[i-1] - dt/2*(h[i-1]+h[i])) / (1 + a)
	}
	return dA, dB
}

func breakSet(breaks []int, n int) []bool {
	b := make([]bool, n)
	for _, i := range breaks {
		if i >= 0 && i < n {
			b[i] = true
		}
	}
	return b
}
