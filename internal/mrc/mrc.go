// Package mrc fits a master recession curve, dh/dt = -A·h + B, to manually
// delimited recession periods of an observed hydrograph.
package mrc

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chrissnell/gwrecharge/internal/hydrograph"
	"github.com/chrissnell/gwrecharge/pkg/timeseries"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mode selects the recession model.
type Mode string

const (
	// ModeLinear forces A to zero: a constant recession rate B.
	ModeLinear Mode = "linear"
	// ModeExponential fits both A and B.
	ModeExponential Mode = "exponential"
)

const (
	maxIterations = 200
	stepTolerance = 1e-12
)

var (
	ErrNoPeriods     = errors.New("no recession period spans at least two samples")
	ErrNoConvergence = errors.New("recession fit did not converge")
)

// Period is a manually selected recession window, in day indices.
type Period struct {
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
}

// Parameters is the immutable outcome of a fit.
type Parameters struct {
	Mode   Mode    `json:"mode" msgpack:"mode"`
	A      float64 `json:"a" msgpack:"a"`
	B      float64 `json:"b" msgpack:"b"`
	RMSE   float64 `json:"rmse" msgpack:"rmse"`
	R2     float64 `json:"r2" msgpack:"r2"`
	StdErr float64 `json:"stdErr" msgpack:"stdErr"`
}

// Recession returns the coefficients in the form the predictor consumes.
func (p Parameters) Recession() hydrograph.Recession {
	return hydrograph.Recession{A: p.A, B: p.B}
}

// Missing returns parameters with NaN coefficients, the state before any
// successful fit.
func Missing(mode Mode) Parameters {
	nan := math.NaN()
	return Parameters{Mode: mode, A: nan, B: nan, RMSE: nan, R2: nan, StdErr: nan}
}

// Fit is the result of fitting: the parameters plus the simulated recession
// over the selected samples.
type Fit struct {
	Parameters
	Index     []int     // indices into the observed series
	Breaks    []int     // positions in Index where the curve is reseeded
	Simulated []float64 // parallel to Index
}

// Fitter fits recession curves.
type Fitter struct {
	logger *zap.SugaredLogger
}

// NewFitter creates a Fitter. logger may be nil.
func NewFitter(logger *zap.SugaredLogger) *Fitter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fitter{logger: logger}
}

// Fit fits the recession model to the observed levels (t, h) restricted to the
// given periods. On non-convergence the returned parameters carry NaN
// coefficients along with ErrNoConvergence.
func (f *Fitter) Fit(t, h []float64, periods []Period, mode Mode) (Fit, error) {
	if len(t) != len(h) {
		return Fit{Parameters: Missing(mode)}, fmt.Errorf("mrc: %d times, %d levels", len(t), len(h))
	}
	if mode != ModeLinear && mode != ModeExponential {
		return Fit{Parameters: Missing(mode)}, fmt.Errorf("mrc: unknown mode %q", mode)
	}

	idx, breaks, slopes := selectPeriods(t, h, periods)
	if len(breaks) == 0 {
		return Fit{Parameters: Missing(mode)}, ErrNoPeriods
	}

	// compact the selection so the predictor runs over the selected samples only
	ts, hs := make([]float64, len(idx)), make([]float64, len(idx))
	for k, i := range idx {
		ts[k], hs[k] = t[i], h[i]
	}

	b0 := stat.Mean(slopes, nil)
	var rc hydrograph.Recession
	var err error
	if mode == ModeLinear {
		rc = fitLinear(ts, hs, breaks)
	} else {
		rc, err = fitExponential(ts, hs, breaks, hydrograph.Recession{A: 0, B: b0})
	}
	if err != nil || !rc.Valid() {
		f.logger.Warnf("recession fit over %d samples in %d periods failed: %v", len(idx), len(breaks), err)
		return Fit{Parameters: Missing(mode), Index: idx, Breaks: breaks}, ErrNoConvergence
	}

	sim := hydrograph.Predict(ts, hs, nil, 1, rc, breaks)
	fit := Fit{
		Parameters: statistics(mode, rc, hs, sim),
		Index:      idx,
		Breaks:     breaks,
		Simulated:  sim,
	}
	f.logger.Debugf("recession fit (%s): A=%.6g 1/d B=%.6g m/d RMSE=%.4g m R²=%.4f over %d samples",
		mode, fit.A, fit.B, fit.RMSE, fit.R2, len(idx))
	return fit, nil
}

// selectPeriods drops periods covering fewer than two samples, merges the rest
// and returns the selected sample indices, the positions of the period starts
// in that selection and each merged period's endpoint slope.
func selectPeriods(t, h []float64, periods []Period) (idx, breaks []int, slopes []float64) {
	type span struct{ lo, hi int } // inclusive sample indices
	var spans []span
	for _, p := range periods {
		start, end := math.Min(p.Start, p.End), math.Max(p.Start, p.End)
		lo, hi := timeseries.Series{T: t}.IndexRange(start, end)
		hi--
		// skip missing levels at the ends of the window
		for lo <= hi && math.IsNaN(h[lo]) {
			lo++
		}
		for hi >= lo && math.IsNaN(h[hi]) {
			hi--
		}
		if hi-lo < 1 {
			continue
		}
		spans = append(spans, span{lo, hi})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	var merged []span
	for _, s := range spans {
		if n := len(merged); n > 0 && s.lo <= merged[n-1].hi+1 {
			if s.hi > merged[n-1].hi {
				merged[n-1].hi = s.hi
			}
			continue
		}
		merged = append(merged, s)
	}

	for _, s := range merged {
		breaks = append(breaks, len(idx))
		for i := s.lo; i <= s.hi; i++ {
			if !math.IsNaN(h[i]) {
				idx = append(idx, i)
			}
		}
		slopes = append(slopes, (h[s.hi]-h[s.lo])/(t[s.hi]-t[s.lo]))
	}
	return idx, breaks, slopes
}

// fitLinear solves for B with A fixed at zero. With A = 0 the predicted level
// is the seed plus B times the time since the last break, so B has a closed form.
func fitLinear(t, h []float64, breaks []int) hydrograph.Recession {
	isBreak := make(map[int]bool, len(breaks))
	for _, b := range breaks {
		isBreak[b] = true
	}
	num, den := 0.0, 0.0
	seed, t0 := 0.0, 0.0
	for i := range t {
		if isBreak[i] {
			seed, t0 = h[i], t[i]
			continue
		}
		x := t[i] - t0
		num += x * (h[i] - seed)
		den += x * x
	}
	if den == 0 {
		return hydrograph.Recession{A: 0, B: math.NaN()}
	}
	return hydrograph.Recession{A: 0, B: num / den}
}

// fitExponential runs a Levenberg-Marquardt search on (A, B) using the analytic
// sensitivities of the predictor. A is kept non-negative.
func fitExponential(t, h []float64, breaks []int, rc hydrograph.Recession) (hydrograph.Recession, error) {
	n := len(t)
	sse := func(rc hydrograph.Recession) (float64, []float64) {
		pred := hydrograph.Predict(t, h, nil, 1, rc, breaks)
		s := 0.0
		for i := range pred {
			d := h[i] - pred[i]
			s += d * d
		}
		return s, pred
	}

	cost, pred := sse(rc)
	lambda := 1e-3
	jac := mat.NewDense(n, 2, nil)
	res := mat.NewVecDense(n, nil)

	for it := 0; it < maxIterations; it++ {
		dA, dB := hydrograph.Sensitivities(t, pred, rc, breaks)
		for i := 0; i < n; i++ {
			jac.Set(i, 0, dA[i])
			jac.Set(i, 1, dB[i])
			res.SetVec(i, h[i]-pred[i])
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), res)

		improved := false
		for attempt := 0; attempt < 40; attempt++ {
			lhs := mat.DenseCopyOf(&jtj)
			for d := 0; d < 2; d++ {
				diag := jtj.At(d, d)
				if diag == 0 {
					diag = 1
				}
				lhs.Set(d, d, jtj.At(d, d)+lambda*diag)
			}
			var step mat.VecDense
			if err := step.SolveVec(lhs, &jtr); err != nil {
				lambda *= 10
				continue
			}
			cand := hydrograph.Recession{A: math.Max(rc.A+step.AtVec(0), 0), B: rc.B + step.AtVec(1)}
			candCost, candPred := sse(cand)
			if candCost <= cost {
				moved := []float64{cand.A - rc.A, cand.B - rc.B}
				rc, cost, pred = cand, candCost, candPred
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				if floats.Norm(moved, 2) <= stepTolerance*(1+math.Hypot(rc.A, rc.B)) || cost == 0 {
					return rc, nil
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			// no downhill step left: converged when the gradient has vanished
			if cost <= 1e-24*floats.Dot(h, h) || mat.Norm(&jtr, 2) <= 1e-9*(1+cost) {
				return rc, nil
			}
			return rc, ErrNoConvergence
		}
	}
	return rc, ErrNoConvergence
}

func statistics(mode Mode, rc hydrograph.Recession, obs, sim []float64) Parameters {
	n := float64(len(obs))
	k := 2.0
	if mode == ModeLinear {
		k = 1
	}
	sse := 0.0
	for i := range obs {
		d := obs[i] - sim[i]
		sse += d * d
	}
	stdErr := math.NaN()
	if n > k {
		stdErr = math.Sqrt(sse / (n - k))
	}
	return Parameters{
		Mode:   mode,
		A:      rc.A,
		B:      rc.B,
		RMSE:   math.Sqrt(sse / n),
		R2:     stat.RSquaredFrom(sim, obs, nil),
		StdErr: stdErr,
	}
}
