package hydrograph

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// MaxIterations bounds the Gauss-Newton search.
	MaxIterations = 100
	// SyTolerance is the step size below which the search has converged.
	SyTolerance = 0.001
	// rmseSlackMM lets a step through when it worsens the RMSE by no more than this.
	rmseSlackMM = 0.1
	// syPerturbation is the relative step of the numeric Jacobian.
	syPerturbation = 0.01
	maxHalvings    = 30
)

var (
	// ErrCalibrationDiverged means the specific-yield search did not converge.
	ErrCalibrationDiverged = errors.New("specific yield calibration diverged")
	ErrNoObservations      = errors.New("no observed water levels to calibrate against")
)

// Calibration is the outcome of a specific-yield search.
type Calibration struct {
	Sy         float64
	RMSE       float64 // mm
	Predicted  []float64
	Iterations int
}

// Calibrate searches for the specific yield minimizing the RMSE between the
// predicted and observed water levels. t, obs and recharge share one time base;
// obs[0] seeds the prediction and is not scored; missing (NaN) observations
// are ignored.
// The search is a damped Gauss-Newton with a one-parameter numeric Jacobian.
func Calibrate(t, obs, recharge []float64, sy0 float64, rc Recession) (Calibration, error) {
	n := len(t)
	if len(obs) != n || len(recharge) != n {
		return Calibration{}, fmt.Errorf("calibrate: time base has %d steps, obs %d, recharge %d", n, len(obs), len(recharge))
	}
	if n == 0 || math.IsNaN(obs[0]) {
		return Calibration{}, ErrNoObservations
	}
	if !(sy0 > 0) {
		return Calibration{}, fmt.Errorf("calibrate: initial specific yield must be positive, got %v", sy0)
	}

	// obs[0] is the seed and always matches, so it stays out of the objective.
	valid := make([]int, 0, n)
	for i := 1; i < n; i++ {
		if !math.IsNaN(obs[i]) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return Calibration{}, ErrNoObservations
	}

	breaks := []int{0}
	predict := func(sy float64) []float64 {
		return Predict(t, obs, recharge, sy, rc, breaks)
	}

	x := make([]float64, len(valid))
	r := make([]float64, len(valid))

	sy := sy0
	pred := predict(sy)
	rmse := rmseMM(obs, pred, valid)

	for it := 1; it <= MaxIterations; it++ {
		dsy := sy * syPerturbation
		pert := predict(sy + dsy)
		for k, i := range valid {
			x[k] = (pert[i] - pred[i]) / dsy
			r[k] = obs[i] - pred[i]
		}
		xtx := floats.Dot(x, x)
		if xtx == 0 || math.IsNaN(xtx) || math.IsInf(xtx, 0) {
			return Calibration{Sy: sy, RMSE: rmse, Iterations: it}, fmt.Errorf("%w: degenerate jacobian at Sy=%g", ErrCalibrationDiverged, sy)
		}
		delta := floats.Dot(x, r) / xtx

		var next []float64
		var nextRMSE float64
		for h := 0; ; h++ {
			if cand := sy + delta; cand > 0 {
				next = predict(cand)
				nextRMSE = rmseMM(obs, next, valid)
				if nextRMSE <= rmse+rmseSlackMM {
					break
				}
			}
			if h == maxHalvings {
				return Calibration{Sy: sy, RMSE: rmse, Iterations: it}, fmt.Errorf("%w: line search failed at Sy=%g", ErrCalibrationDiverged, sy)
			}
			delta /= 2
		}

		sy += delta
		pred, rmse = next, nextRMSE
		if math.Abs(delta) < SyTolerance {
			return Calibration{Sy: sy, RMSE: rmse, Predicted: pred, Iterations: it}, nil
		}
	}
	return Calibration{Sy: sy, RMSE: rmse, Iterations: MaxIterations}, fmt.Errorf("%w: no convergence after %d iterations", ErrCalibrationDiverged, MaxIterations)
}

func rmseMM(obs, pred []float64, valid []int) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	sse := 0.0
	for _, i := range valid {
		d := (obs[i] - pred[i]) * 1000
		sse += d * d
	}
	return math.Sqrt(sse / float64(len(valid)))
}
