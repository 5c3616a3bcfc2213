// Package glue turns a frozen ensemble of behavioural models into weighted
// percentile bands (Generalized Likelihood Uncertainty Estimation) and
// re-aggregates the bands to monthly, yearly and hydrological-yearly totals.
package glue

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/gwrecharge/internal/sweep"
	"go.uber.org/zap"
)

// Quantity names one physical quantity of the result.
type Quantity string

const (
	Recharge           Quantity = "recharge"
	Evapotranspiration Quantity = "etr"
	Runoff             Quantity = "runoff"
	Precipitation      Quantity = "precip"
	WaterLevel         Quantity = "waterLevel"
)

// Quantities lists the quantities in result order.
var Quantities = []Quantity{Recharge, Evapotranspiration, Runoff, Precipitation, WaterLevel}

// DefaultLimits are the uncertainty limits reported when none are given.
var DefaultLimits = []float64{0.05, 0.25, 0.5, 0.75, 0.95}

var ErrEmptyEnsemble = errors.New("no behavioural model in ensemble")

// Bands holds one series per limit: Bands[l][t].
type Bands [][]float64

// Period is one aggregation interval, inclusive day indices.
type Period struct {
	Label string  `json:"label" msgpack:"label"`
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
}

// Scale is a set of bands aggregated over consecutive periods.
type Scale struct {
	Periods []Period           `json:"periods" msgpack:"periods"`
	Values  map[Quantity]Bands `json:"values" msgpack:"values"`
}

// ModelSummary records one behavioural model and its weight.
type ModelSummary struct {
	Cru    float64 `json:"cru" msgpack:"cru"`
	RASmax float64 `json:"rasmax" msgpack:"rasmax"`
	Sy     float64 `json:"sy" msgpack:"sy"`
	RMSE   float64 `json:"rmse" msgpack:"rmse"`
	Weight float64 `json:"weight" msgpack:"weight"`
}

// Result is the outcome of one aggregation. It is built whole and not modified
// afterwards.
type Result struct {
	Limits      []float64          `json:"limits" msgpack:"limits"`
	DelayDays   int                `json:"delayDays" msgpack:"delayDays"`
	GridSize    int                `json:"gridSize" msgpack:"gridSize"`
	Days        []float64          `json:"days" msgpack:"days"`
	Daily       map[Quantity]Bands `json:"daily" msgpack:"daily"`
	Monthly     Scale              `json:"monthly" msgpack:"monthly"`
	Yearly      Scale              `json:"yearly" msgpack:"yearly"`
	HydroYearly Scale              `json:"hydroYearly" msgpack:"hydroYearly"`
	Models      []ModelSummary     `json:"models" msgpack:"models"`
}

// Aggregator computes GLUE results.
type Aggregator struct {
	logger *zap.SugaredLogger
}

// NewAggregator creates an Aggregator. logger may be nil.
func NewAggregator(logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{logger: logger}
}

// Aggregate computes the percentile bands of every quantity at the given
// limits (DefaultLimits when empty) over the ensemble.
func (a *Aggregator) Aggregate(ens *sweep.Ensemble, limits ...float64) (*Result, error) {
	if ens == nil || ens.Len() == 0 {
		return nil, ErrEmptyEnsemble
	}
	if len(limits) == 0 {
		limits = DefaultLimits
	}
	if err := ValidateLimits(limits); err != nil {
		return nil, err
	}

	meta := ens.Meta()
	weights := ens.Weights()
	n := len(meta.Days)
	d := meta.DelayDays
	if n == 0 {
		return nil, fmt.Errorf("glue: ensemble has no days")
	}
	axis := extendDays(meta.Days, d)

	// per-quantity matrices on the extended axis: [model][t]
	series := make(map[Quantity][][]float64, len(Quantities))
	models := make([]ModelSummary, ens.Len())
	for i := 0; i < ens.Len(); i++ {
		m := ens.Model(i)
		series[Recharge] = append(series[Recharge], shift(m.Recharge, n+d, d))
		series[Evapotranspiration] = append(series[Evapotranspiration], shift(m.ETR, n+d, 0))
		series[Runoff] = append(series[Runoff], shift(m.Runoff, n+d, 0))
		series[WaterLevel] = append(series[WaterLevel], shift(m.Hydrograph, n+d, 0))
		models[i] = ModelSummary{Cru: m.Cru, RASmax: m.RASmax, Sy: m.Sy, RMSE: m.RMSE, Weight: weights[i]}
	}
	series[Precipitation] = [][]float64{shift(meta.Precip, n+d, 0)}

	res := &Result{
		Limits:    append([]float64(nil), limits...),
		DelayDays: d,
		GridSize:  meta.GridSize,
		Days:      axis,
		Daily:     make(map[Quantity]Bands, len(Quantities)),
		Models:    models,
	}
	for _, q := range Quantities {
		w := weights
		if q == Precipitation {
			w = []float64{1}
		}
		res.Daily[q] = bands(series[q], w, limits)
	}

	res.Monthly = monthly(axis, res.Daily)
	res.Yearly = yearly(res.Monthly, time.January, func(y int) string { return fmt.Sprintf("%d", y) })
	res.HydroYearly = yearly(res.Monthly, time.October, func(y int) string { return fmt.Sprintf("%d-%d", y, y+1) })

	a.logger.Debugf("aggregated %d behavioural models over %d days, %d months, %d years",
		ens.Len(), len(axis), len(res.Monthly.Periods), len(res.Yearly.Periods))
	return res, nil
}

// bands computes the weighted percentiles of every time step.
func bands(models [][]float64, weights, limits []float64) Bands {
	n := len(models[0])
	out := make(Bands, len(limits))
	for l := range out {
		out[l] = make([]float64, n)
	}
	vals := make([]float64, len(models))
	var s sampler
	for t := 0; t < n; t++ {
		for m := range models {
			vals[m] = models[m][t]
		}
		s.reset(vals, weights)
		for l, p := range limits {
			out[l][t] = s.at(p)
		}
	}
	return out
}

// extendDays appends extra consecutive days to the axis.
func extendDays(days []float64, extra int) []float64 {
	out := make([]float64, len(days), len(days)+extra)
	copy(out, days)
	last := days[len(days)-1]
	for k := 1; k <= extra; k++ {
		out = append(out, last+float64(k))
	}
	return out
}

// shift places src on an axis of length n starting at offset, padding the rest with NaN.
func shift(src []float64, n, offset int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if j := i - offset; j >= 0 && j < len(src) {
			out[i] = src[j]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// ValidateLimits checks that limits are strictly increasing within [0,1]. An
// empty list is valid and stands for DefaultLimits.
func ValidateLimits(limits []float64) error {
	for i, p := range limits {
		if math.IsNaN(p) || p < 0 || p > 1 || (i > 0 && p <= limits[i-1]) {
			return fmt.Errorf("glue: limits must be increasing within [0,1], got %v", limits)
		}
	}
	return nil
}
