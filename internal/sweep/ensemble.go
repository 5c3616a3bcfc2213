package sweep

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// minWeightRMSE floors the RMSE used for weighting so a perfect fit cannot
// produce an infinite weight.
const minWeightRMSE = 1e-9

var ErrFrozen = errors.New("ensemble builder already frozen")

// Model is one candidate: a parameter combination with its daily series on the
// weather axis and its fit against the observed hydrograph.
type Model struct {
	Cru        float64   `json:"cru" msgpack:"cru"`
	RASmax     float64   `json:"rasmax" msgpack:"rasmax"`
	Sy         float64   `json:"sy" msgpack:"sy"`
	RMSE       float64   `json:"rmse" msgpack:"rmse"` // mm
	Recharge   []float64 `json:"-" msgpack:"-"`
	Runoff     []float64 `json:"-" msgpack:"-"`
	ETR        []float64 `json:"-" msgpack:"-"`
	Hydrograph []float64 `json:"-" msgpack:"-"` // m, NaN before the first observation
}

func (m Model) clone() Model {
	m.Recharge = cloneSlice(m.Recharge)
	m.Runoff = cloneSlice(m.Runoff)
	m.ETR = cloneSlice(m.ETR)
	m.Hydrograph = cloneSlice(m.Hydrograph)
	return m
}

// Meta describes the sweep an ensemble came from.
type Meta struct {
	Days      []float64 // weather day indices
	Precip    []float64 // mm/day on Days
	DelayDays int
	GridSize  int
}

// Builder accumulates behavioural models during a sweep. It is append-only and
// becomes unusable once frozen.
type Builder struct {
	models []Model
	frozen bool
}

// Add appends a model. The builder takes ownership of its slices.
func (b *Builder) Add(m Model) error {
	if b.frozen {
		return ErrFrozen
	}
	b.models = append(b.models, m)
	return nil
}

// Freeze finalizes the builder into an immutable Ensemble, computing the
// normalized 1/RMSE weights.
func (b *Builder) Freeze(meta Meta) (*Ensemble, error) {
	if b.frozen {
		return nil, ErrFrozen
	}
	b.frozen = true

	w := make([]float64, len(b.models))
	for i, m := range b.models {
		w[i] = 1 / math.Max(m.RMSE, minWeightRMSE)
	}
	if len(w) > 0 {
		floats.Scale(1/floats.Sum(w), w)
	}

	e := &Ensemble{
		models:  b.models,
		weights: w,
		meta: Meta{
			Days:      cloneSlice(meta.Days),
			Precip:    cloneSlice(meta.Precip),
			DelayDays: meta.DelayDays,
			GridSize:  meta.GridSize,
		},
	}
	b.models = nil
	return e, nil
}

// Ensemble is a frozen, read-only set of behavioural models. Accessors return
// copies so callers cannot alter it.
type Ensemble struct {
	models  []Model
	weights []float64
	meta    Meta
}

// Len returns the number of behavioural models
func (e *Ensemble) Len() int { return len(e.models) }

// Model returns a copy of model i.
func (e *Ensemble) Model(i int) Model { return e.models[i].clone() }

// Weights returns the normalized weights, parallel to the models.
func (e *Ensemble) Weights() []float64 { return cloneSlice(e.weights) }

// Meta returns a copy of the sweep metadata.
func (e *Ensemble) Meta() Meta {
	m := e.meta
	m.Days = cloneSlice(m.Days)
	m.Precip = cloneSlice(m.Precip)
	return m
}

func cloneSlice(s []float64) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
