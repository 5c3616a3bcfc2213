// Package recharge is the entry point of the recharge estimation engine. It
// checks the prerequisites, aligns the observed and weather series, runs the
// parameter sweep and aggregates the behavioural ensemble.
package recharge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/gwrecharge/internal/glue"
	"github.com/chrissnell/gwrecharge/internal/hydrograph"
	"github.com/chrissnell/gwrecharge/internal/mrc"
	"github.com/chrissnell/gwrecharge/internal/sweep"
	"github.com/chrissnell/gwrecharge/pkg/timeseries"
	"go.uber.org/zap"
)

var (
	// ErrPrerequisiteMissing means no usable master recession curve is available.
	ErrPrerequisiteMissing = errors.New("master recession curve coefficients are missing")
	// ErrDisjointSeries means the observed and weather series share no day.
	ErrDisjointSeries = errors.New("observed and weather series do not overlap")
	// ErrEmptyEnsemble means no grid point passed the behavioural filter.
	ErrEmptyEnsemble = glue.ErrEmptyEnsemble

	ErrCalibrationDiverged = hydrograph.ErrCalibrationDiverged
	ErrNoConvergence       = mrc.ErrNoConvergence
	ErrNoPeriods           = mrc.ErrNoPeriods
)

// Config is the configuration of one evaluation.
type Config struct {
	sweep.Config `yaml:",inline" msgpack:",inline"`
	// Limits are the uncertainty limits of the result; glue.DefaultLimits when empty.
	Limits []float64 `json:"limits,omitempty" yaml:"limits,omitempty" msgpack:"limits,omitempty"`
}

// Validate checks the sweep settings and the uncertainty limits.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	return glue.ValidateLimits(c.Limits)
}

// Inputs is an immutable snapshot of the data one evaluation works on.
type Inputs struct {
	Observed timeseries.Series  `json:"observed" msgpack:"observed"` // heads in metres
	Weather  timeseries.Weather `json:"weather" msgpack:"weather"`
	MRC      mrc.Parameters     `json:"mrc" msgpack:"mrc"`
}

// ProgressFunc receives the percentage of grid points processed.
type ProgressFunc = sweep.ProgressFunc

// Evaluate runs a complete recharge evaluation. It refuses to start without
// valid recession coefficients or without a common period of observed and
// weather data. ErrEmptyEnsemble is returned, with a nil result, when no
// model is behavioural.
func Evaluate(ctx context.Context, in Inputs, cfg Config, progress ProgressFunc, logger *zap.SugaredLogger) (*glue.Result, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	rc := in.MRC.Recession()
	if !rc.Valid() {
		return nil, ErrPrerequisiteMissing
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sin, err := align(in)
	if err != nil {
		return nil, err
	}
	sin.Recession = rc
	logger.Infof("evaluating recharge over %d days (%.0f to %.0f) with MRC A=%.4g B=%.4g",
		sin.Weather.Len(), sin.Weather.Days[0], sin.Weather.Days[sin.Weather.Len()-1], rc.A, rc.B)

	ens, stats, err := sweep.New(logger).Run(ctx, sin, cfg.Config, progress)
	if err != nil {
		return nil, err
	}
	if ens.Len() == 0 {
		logger.Warnf("none of %d grid points is behavioural (best RMSE %.2f mm)", stats.Points, stats.BestRMSE)
		return nil, ErrEmptyEnsemble
	}
	return glue.NewAggregator(logger).Aggregate(ens, cfg.Limits...)
}

// align trims both series, crops the weather record to the days it shares
// with the observations and reduces the observations to daily means on it.
func align(in Inputs) (sweep.Inputs, error) {
	if err := in.Weather.Validate(); err != nil {
		return sweep.Inputs{}, err
	}
	obs, err := timeseries.New(in.Observed.T, in.Observed.V)
	if err != nil {
		return sweep.Inputs{}, fmt.Errorf("observed series: %w", err)
	}
	obs = obs.Trim()

	oStart, oEnd, ok := obs.Span()
	if !ok {
		return sweep.Inputs{}, fmt.Errorf("%w: no observed water level", ErrDisjointSeries)
	}
	days := in.Weather.Days
	start, end, ok := timeseries.Overlap(math.Floor(oStart), math.Floor(oEnd), days[0], days[len(days)-1])
	if !ok {
		return sweep.Inputs{}, fmt.Errorf("%w: observed %.0f-%.0f, weather %.0f-%.0f",
			ErrDisjointSeries, oStart, oEnd, days[0], days[len(days)-1])
	}

	lo := int(start - days[0])
	hi := int(end-days[0]) + 1
	w := in.Weather.Slice(lo, hi)
	daily := obs.OnDays(w.Days)
	for _, v := range daily {
		if !math.IsNaN(v) {
			return sweep.Inputs{Weather: w, Observed: daily}, nil
		}
	}
	return sweep.Inputs{}, fmt.Errorf("%w: no observed water level on a weather day", ErrDisjointSeries)
}
