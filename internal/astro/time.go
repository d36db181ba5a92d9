package astro

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// J2000 is the standard epoch 2000-01-01 12:00 TT, taken here as UTC.
var J2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// JulianDate returns the Julian Date for t.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// TimeFromJulianDate converts a Julian Date back to a UTC time.
func TimeFromJulianDate(jd float64) time.Time {
	return julian.JDToTime(jd).UTC()
}

// DaysBetween returns (b - a) in days using Julian Dates, so the result
// keeps sub-second precision over multi-century spans.
func DaysBetween(a, b time.Time) float64 {
	return JulianDate(b) - JulianDate(a)
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
