package sweep

import (
	"errors"
	"fmt"
	"math"
)

// Resolution selects the RASmax grid step.
type Resolution string

const (
	ResolutionFine  Resolution = "fine"  // 1 mm RASmax step
	ResolutionRough Resolution = "rough" // 5 mm RASmax step

	// CruStep is the runoff-coefficient grid step for both resolutions.
	CruStep = 0.01
	// RASmaxLimit is the largest allowed maximum readily-available storage (mm).
	RASmaxLimit = 150.0
)

var ErrInvalidRange = errors.New("invalid parameter range")

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `json:"min" yaml:"min" msgpack:"min"`
	Max float64 `json:"max" yaml:"max" msgpack:"max"`
}

// Contains reports whether v lies in the range
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Mid returns the middle of the range
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// Step returns the RASmax step of the resolution in mm.
func (r Resolution) Step() (float64, error) {
	switch r {
	case ResolutionFine, "":
		return 1, nil
	case ResolutionRough:
		return 5, nil
	}
	return 0, fmt.Errorf("%w: unknown resolution %q", ErrInvalidRange, r)
}

// Point is one grid combination.
type Point struct {
	Cru    float64 `json:"cru" msgpack:"cru"`
	RASmax float64 `json:"rasmax" msgpack:"rasmax"`
}

// Grid enumerates the Cru × RASmax grid: Cru in the outer loop, RASmax in the
// inner loop, both ascending. Values are computed from integer step counts so
// no floating-point drift accumulates.
func Grid(cru, rasmax Range, res Resolution) ([]Point, error) {
	step, err := res.Step()
	if err != nil {
		return nil, err
	}
	if err := checkRange("Cru", cru, 0, 1); err != nil {
		return nil, err
	}
	if err := checkRange("RASmax", rasmax, 0, RASmaxLimit); err != nil {
		return nil, err
	}

	nCru := steps(cru, CruStep)
	nRAS := steps(rasmax, step)
	pts := make([]Point, 0, nCru*nRAS)
	for i := 0; i < nCru; i++ {
		c := math.Round((cru.Min+float64(i)*CruStep)*100) / 100
		for j := 0; j < nRAS; j++ {
			pts = append(pts, Point{Cru: c, RASmax: rasmax.Min + float64(j)*step})
		}
	}
	return pts, nil
}

func steps(r Range, step float64) int {
	return int(math.Floor((r.Max-r.Min)/step+1e-9)) + 1
}

func checkRange(name string, r Range, lo, hi float64) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return fmt.Errorf("%w: %s bounds are NaN", ErrInvalidRange, name)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s min %v exceeds max %v", ErrInvalidRange, name, r.Min, r.Max)
	}
	if r.Min < lo || r.Max > hi {
		return fmt.Errorf("%w: %s [%v,%v] outside [%v,%v]", ErrInvalidRange, name, r.Min, r.Max, lo, hi)
	}
	return nil
}
