// Package solar computes the astronomical quantities the weather preprocessing
// needs.
package solar

import (
	"math"
)

// Declination returns the solar declination in radians for the given day of
// the year.
func Declination(dayOfYear int) float64 {
	doy := float64(dayOfYear)
	innerAngle := (356.6 + 0.9856*doy) * (math.Pi / 180.0)
	outerAngle := (278.97 + 0.9856*doy + 1.9165*math.Sin(innerAngle)) * (math.Pi / 180.0)
	return math.Asin(0.39785 * math.Sin(outerAngle))
}

// DayLength returns the number of daylight hours at the given latitude
// (degrees, north positive): 24 during polar day and 0 during polar night.
func DayLength(dayOfYear int, latitude float64) float64 {
	latRad := latitude * (math.Pi / 180.0)

	// At sunrise/sunset the sun is on the horizon:
	// cos(H) = -tan(lat) * tan(declination)
	cosH := -math.Tan(latRad) * math.Tan(Declination(dayOfYear))
	if cosH <= -1.0 {
		// Sun never sets
		return 24
	}
	if cosH >= 1.0 {
		// Sun never rises
		return 0
	}

	// 15 degrees per hour, on both sides of solar noon
	return 2 * math.Acos(cosH) * (180.0 / math.Pi) / 15.0
}
