package glue

import (
	"math"
	"sort"
)

// WeightedPercentile returns the value at cumulative weight p of the weighted
// sample (values, weights). Missing values are skipped and the remaining
// weights renormalized. Between sorted samples the value is interpolated
// linearly in cumulative weight; outside the cumulative range it is clamped to
// the smallest or largest value. The result is NaN when no value is present.
func WeightedPercentile(values, weights []float64, p float64) float64 {
	var s sampler
	s.reset(values, weights)
	return s.at(p)
}

// sampler keeps the sorted order and cumulative weights of one time step so
// several percentiles can be read from one sort.
type sampler struct {
	order []int
	vals  []float64
	cum   []float64
}

func (s *sampler) reset(values, weights []float64) {
	s.order = s.order[:0]
	for i, v := range values {
		if !math.IsNaN(v) {
			s.order = append(s.order, i)
		}
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return values[s.order[a]] < values[s.order[b]]
	})

	s.vals, s.cum = s.vals[:0], s.cum[:0]
	total := 0.0
	for _, i := range s.order {
		total += weights[i]
		s.vals = append(s.vals, values[i])
		s.cum = append(s.cum, total)
	}
	if total > 0 {
		for k := range s.cum {
			s.cum[k] /= total
		}
	}
}

func (s *sampler) at(p float64) float64 {
	n := len(s.vals)
	if n == 0 {
		return math.NaN()
	}
	if p <= s.cum[0] {
		return s.vals[0]
	}
	if p >= s.cum[n-1] {
		return s.vals[n-1]
	}
	k := sort.SearchFloat64s(s.cum, p) // first k with cum[k] >= p, k >= 1
	c0, c1 := s.cum[k-1], s.cum[k]
	if c1 == c0 {
		return s.vals[k]
	}
	return s.vals[k-1] + (p-c0)/(c1-c0)*(s.vals[k]-s.vals[k-1])
}
