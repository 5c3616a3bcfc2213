// Package sweep drives the surface water budget and the specific-yield
// calibrator over a Cru × RASmax grid and keeps the behavioural models.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/gwrecharge/internal/hydrograph"
	"github.com/chrissnell/gwrecharge/internal/swb"
	"github.com/chrissnell/gwrecharge/pkg/timeseries"
	"go.uber.org/zap"
)

// Config is the range configuration of one evaluation.
type Config struct {
	Sy         Range      `json:"syRange" yaml:"sy-range" msgpack:"syRange"`
	Cru        Range      `json:"cruRange" yaml:"cru-range" msgpack:"cruRange"`
	RASmax     Range      `json:"rasmaxRange" yaml:"rasmax-range" msgpack:"rasmaxRange"`
	Resolution Resolution `json:"resolution" yaml:"resolution" msgpack:"resolution"`
	Tmelt      float64    `json:"tmelt" yaml:"tmelt" msgpack:"tmelt"`        // °C
	CM         float64    `json:"cm" yaml:"cm" msgpack:"cm"`                 // mm/°C/day
	DelayDays  int        `json:"delayDays" yaml:"delay-days" msgpack:"delayDays"`
	// RMSECutoff is the fixed acceptance threshold in mm. When CutoffEnabled is
	// false the best RMSE seen so far is used instead.
	RMSECutoff    float64 `json:"rmseCutoff" yaml:"rmse-cutoff" msgpack:"rmseCutoff"`
	CutoffEnabled bool    `json:"rmseCutoffEnabled" yaml:"rmse-cutoff-enabled" msgpack:"rmseCutoffEnabled"`
}

// Validate checks the ranges and secondary parameters.
func (c Config) Validate() error {
	if _, err := c.Resolution.Step(); err != nil {
		return err
	}
	if err := checkRange("Sy", c.Sy, 0, 1); err != nil {
		return err
	}
	if err := checkRange("Cru", c.Cru, 0, 1); err != nil {
		return err
	}
	if err := checkRange("RASmax", c.RASmax, 0, RASmaxLimit); err != nil {
		return err
	}
	if !(c.Sy.Max > 0) {
		return fmt.Errorf("%w: Sy range must include positive values", ErrInvalidRange)
	}
	if c.DelayDays < 0 {
		return fmt.Errorf("%w: negative delay %d", ErrInvalidRange, c.DelayDays)
	}
	if c.CutoffEnabled && !(c.RMSECutoff > 0) {
		return fmt.Errorf("%w: RMSE cutoff must be positive, got %v", ErrInvalidRange, c.RMSECutoff)
	}
	p := swb.Params{Tmelt: c.Tmelt, CM: c.CM}
	return p.Validate()
}

// seed returns the initial specific yield of the first grid point.
func (c Config) seed() float64 {
	if s := c.Sy.Mid(); s > 0 {
		return s
	}
	return c.Sy.Max
}

// Inputs are the aligned series of one evaluation.
type Inputs struct {
	Weather   timeseries.Weather
	Observed  []float64 // daily heads (m) on Weather.Days, NaN where missing
	Recession hydrograph.Recession
}

// ProgressFunc receives the percentage of grid points processed.
type ProgressFunc func(percent float64)

// Stats summarizes a sweep.
type Stats struct {
	Points      int     `json:"points" msgpack:"points"`
	Evaluated   int     `json:"evaluated" msgpack:"evaluated"`
	Behavioural int     `json:"behavioural" msgpack:"behavioural"`
	Diverged    int     `json:"diverged" msgpack:"diverged"`
	OutOfRange  int     `json:"outOfRange" msgpack:"outOfRange"`
	BestRMSE    float64 `json:"bestRmse" msgpack:"bestRmse"`
}

// Engine runs parameter sweeps.
type Engine struct {
	logger *zap.SugaredLogger
}

// New creates an Engine. logger may be nil.
func New(logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{logger: logger}
}

// Run enumerates the grid in order, simulating and calibrating each point. Each
// point's Sy search starts from the Sy solved at the point before it. Run stops
// between grid points when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, in Inputs, cfg Config, progress ProgressFunc) (*Ensemble, Stats, error) {
	stats := Stats{BestRMSE: math.NaN()}
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	if err := in.Weather.Validate(); err != nil {
		return nil, stats, err
	}
	n := in.Weather.Len()
	if len(in.Observed) != n {
		return nil, stats, fmt.Errorf("sweep: %d observed levels for %d weather days", len(in.Observed), n)
	}
	first := -1
	for i, v := range in.Observed {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, stats, hydrograph.ErrNoObservations
	}

	grid, err := Grid(cfg.Cru, cfg.RASmax, cfg.Resolution)
	if err != nil {
		return nil, stats, err
	}
	stats.Points = len(grid)

	t := in.Weather.Days[first:]
	obs := in.Observed[first:]
	delayed := make([]float64, n)

	var b Builder
	sy := cfg.seed()
	best := math.Inf(1)

	for k, pt := range grid {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		sim, err := swb.Simulate(in.Weather.PET, in.Weather.Precip, in.Weather.Tavg, swb.Params{
			Tmelt: cfg.Tmelt, CM: cfg.CM, Cru: pt.Cru, RASmax: pt.RASmax,
		})
		if err != nil {
			return nil, stats, err
		}
		delay(delayed, sim.Recharge, cfg.DelayDays)

		cal, err := hydrograph.Calibrate(t, obs, delayed[first:], sy, in.Recession)
		switch {
		case errors.Is(err, hydrograph.ErrCalibrationDiverged):
			stats.Diverged++
			e.logger.Debugf("grid point %d/%d Cru=%.2f RASmax=%.0f: %v", k+1, len(grid), pt.Cru, pt.RASmax, err)
		case err != nil:
			return nil, stats, err
		default:
			stats.Evaluated++
			sy = cal.Sy
			if cal.RMSE < best {
				best = cal.RMSE
			}
			cutoff := best
			if cfg.CutoffEnabled {
				cutoff = cfg.RMSECutoff
			}
			inRange := cfg.Sy.Contains(cal.Sy)
			keep := inRange && cal.RMSE <= cutoff
			if !inRange {
				stats.OutOfRange++
			}
			e.logger.Debugf("grid point %d/%d Cru=%.2f RASmax=%.0f: Sy=%.4f RMSE=%.2f mm in %d iterations, behavioural=%v",
				k+1, len(grid), pt.Cru, pt.RASmax, cal.Sy, cal.RMSE, cal.Iterations, keep)
			if keep {
				hyd := make([]float64, n)
				for i := 0; i < first; i++ {
					hyd[i] = math.NaN()
				}
				copy(hyd[first:], cal.Predicted)
				if err := b.Add(Model{
					Cru:        pt.Cru,
					RASmax:     pt.RASmax,
					Sy:         cal.Sy,
					RMSE:       cal.RMSE,
					Recharge:   sim.Recharge,
					Runoff:     sim.Runoff,
					ETR:        sim.ETR,
					Hydrograph: hyd,
				}); err != nil {
					return nil, stats, err
				}
				stats.Behavioural++
			}
		}

		if progress != nil {
			progress(100 * float64(k+1) / float64(len(grid)))
		}
	}

	if !math.IsInf(best, 1) {
		stats.BestRMSE = best
	}
	e.logger.Infof("sweep finished: %d grid points, %d calibrated, %d behavioural, %d diverged, %d with Sy out of range",
		stats.Points, stats.Evaluated, stats.Behavioural, stats.Diverged, stats.OutOfRange)

	ens, err := b.Freeze(Meta{
		Days:      in.Weather.Days,
		Precip:    in.Weather.Precip,
		DelayDays: cfg.DelayDays,
		GridSize:  len(grid),
	})
	return ens, stats, err
}

// delay writes src shifted forward by d days into dst, zero-filling the start.
func delay(dst, src []float64, d int) {
	for i := range dst {
		if j := i - d; j >= 0 && j < len(src) {
			dst[i] = src[j]
		} else {
			dst[i] = 0
		}
	}
}
