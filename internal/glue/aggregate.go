package glue

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/gwrecharge/pkg/timeseries"
)

type monthKey struct {
	year  int
	month time.Month
}

// monthly sums the daily bands of each calendar month (averages for water
// level). A month not fully covered by the axis, or with any missing day, is NaN.
func monthly(axis []float64, daily map[Quantity]Bands) Scale {
	type group struct {
		key    monthKey
		lo, hi int // half-open range on axis
	}
	var groups []group
	for i, day := range axis {
		y, m, _ := timeseries.Date(day)
		k := monthKey{y, m}
		if n := len(groups); n > 0 && groups[n-1].key == k {
			groups[n-1].hi = i + 1
			continue
		}
		groups = append(groups, group{key: k, lo: i, hi: i + 1})
	}

	sc := Scale{Values: make(map[Quantity]Bands, len(daily))}
	for _, g := range groups {
		start := timeseries.FromDate(g.key.year, g.key.month, 1)
		length := timeseries.DaysIn(g.key.year, g.key.month)
		sc.Periods = append(sc.Periods, Period{
			Label: fmt.Sprintf("%04d-%02d", g.key.year, int(g.key.month)),
			Start: start,
			End:   start + float64(length-1),
		})
	}

	for q, b := range daily {
		out := make(Bands, len(b))
		for l, series := range b {
			out[l] = make([]float64, len(groups))
			for k, g := range groups {
				if g.hi-g.lo != timeseries.DaysIn(g.key.year, g.key.month) {
					out[l][k] = math.NaN()
					continue
				}
				out[l][k] = total(series[g.lo:g.hi], q == WaterLevel)
			}
		}
		sc.Values[q] = out
	}
	return sc
}

// yearly combines twelve consecutive monthly values into years beginning in
// first (January for calendar years, October for hydrological years). A year
// lacking any of its months is NaN.
func yearly(months Scale, first time.Month, label func(int) string) Scale {
	type group struct {
		year   int
		lo, hi int // half-open range on months
	}
	var groups []group
	for i, p := range months.Periods {
		y, m, _ := timeseries.Date(p.Start)
		if m < first {
			y--
		}
		if n := len(groups); n > 0 && groups[n-1].year == y {
			groups[n-1].hi = i + 1
			continue
		}
		groups = append(groups, group{year: y, lo: i, hi: i + 1})
	}

	sc := Scale{Values: make(map[Quantity]Bands, len(months.Values))}
	for _, g := range groups {
		sc.Periods = append(sc.Periods, Period{
			Label: label(g.year),
			Start: timeseries.FromDate(g.year, first, 1),
			End:   timeseries.FromDate(g.year+1, first, 1) - 1,
		})
	}

	for q, b := range months.Values {
		out := make(Bands, len(b))
		for l, series := range b {
			out[l] = make([]float64, len(groups))
			for k, g := range groups {
				if g.hi-g.lo != 12 {
					out[l][k] = math.NaN()
					continue
				}
				out[l][k] = total(series[g.lo:g.hi], q == WaterLevel)
			}
		}
		sc.Values[q] = out
	}
	return sc
}

// total sums v in order, or averages it when mean is set. Any NaN makes the
// total NaN.
func total(v []float64, mean bool) float64 {
	sum := 0.0
	for _, x := range v {
		if math.IsNaN(x) {
			return math.NaN()
		}
		sum += x
	}
	if mean {
		return sum / float64(len(v))
	}
	return sum
}
