// Package solar computes the photoperiod at a site, used to annotate
// phenological transition dates with the day length the canopy experienced.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// Declination returns the apparent solar declination in degrees at the given
// instant, from the low-precision solar position series.
func Declination(t time.Time) float64 {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C
	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	return radToDeg(math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda))))
}

// DayLength returns the photoperiod in hours on the given date at the given
// latitude: twice the sunrise hour angle. Polar day returns 24 and polar
// night returns 0.
func DayLength(t time.Time, latitude float64) float64 {
	decl := degToRad(Declination(t))
	latRad := degToRad(latitude)

	// At sunrise/sunset the sun sits on the horizon: cos(H) = -tan(lat) * tan(decl)
	cosH := -math.Tan(latRad) * math.Tan(decl)
	if cosH <= -1.0 {
		return 24
	}
	if cosH >= 1.0 {
		return 0
	}

	hourAngleHours := radToDeg(math.Acos(cosH)) / 15.0 // 15 degrees per hour
	return 2 * hourAngleHours
}
