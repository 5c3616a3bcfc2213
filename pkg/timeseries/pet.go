package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/gwrecharge/pkg/solar"
)

// ErrShortRecord means the record does not cover every calendar month, so no
// monthly temperature normals can be formed.
var ErrShortRecord = errors.New("weather record does not cover all twelve months")

// Thornthwaite estimates daily potential evapotranspiration (mm/day) from the
// mean daily temperature. The heat index comes from the record's own monthly
// normals; latitude is in degrees, north positive.
func Thornthwaite(days, tavg []float64, latitude float64) ([]float64, error) {
	if len(days) != len(tavg) {
		return nil, fmt.Errorf("%w: %d days, %d temperatures", ErrLengthMismatch, len(days), len(tavg))
	}
	if math.IsNaN(latitude) || math.Abs(latitude) > 90 {
		return nil, fmt.Errorf("latitude %v out of range", latitude)
	}

	var sum [12]float64
	var cnt [12]int
	for i, d := range days {
		if IsMissing(tavg[i]) {
			continue
		}
		_, m, _ := Date(d)
		sum[m-1] += tavg[i]
		cnt[m-1]++
	}
	heat := 0.0
	for m := range sum {
		if cnt[m] == 0 {
			return nil, fmt.Errorf("%w: no temperature in %v", ErrShortRecord, time.Month(m+1))
		}
		if normal := sum[m] / float64(cnt[m]); normal > 0 {
			heat += math.Pow(normal/5, 1.514)
		}
	}
	a := 6.75e-7*heat*heat*heat - 7.71e-5*heat*heat + 1.792e-2*heat + 0.49239

	pet := make([]float64, len(days))
	for i, d := range days {
		switch {
		case IsMissing(tavg[i]):
			pet[i] = math.NaN()
		case tavg[i] <= 0 || heat == 0:
			pet[i] = 0
		default:
			doy := ToTime(math.Floor(d) + 0.5).YearDay()
			pet[i] = 16 * math.Pow(10*tavg[i]/heat, a) * solar.DayLength(doy, latitude) / (12 * 30)
		}
	}
	return pet, nil
}

// FillPET derives the PET channel with Thornthwaite when the record has none.
func (w *Weather) FillPET(latitude float64) error {
	if len(w.PET) != 0 {
		return nil
	}
	pet, err := Thornthwaite(w.Days, w.Tavg, latitude)
	if err != nil {
		return err
	}
	w.PET = pet
	return nil
}
