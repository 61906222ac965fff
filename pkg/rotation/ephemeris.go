package rotation

import(
	"math"
	"time"

	"sunstack/pkg/smath"
)

// Low-precision ephemerides, good to a few arcminutes. Field
// rotation is a slowly varying angle over a capture run of minutes,
// so arcminute-level RA/Dec errors are far below the resolution of
// the derotation they feed.

// RADec returns the target's apparent right ascension and declination
// in radians at time t.
func RADec(t time.Time, target Target) (float64, float64) {
	if target == Moon {
		return moonRADec(t)
	}
	return sunRADec(t)
}

// sunRADec: Meeus-style low-precision solar position.
func sunRADec(t time.Time) (float64, float64) {
	n := JulianDate(t) - j2000

	L := smath.NormalizeRad(smath.Deg2Rad(280.460 + 0.9856474*n))  // mean longitude
	g := smath.NormalizeRad(smath.Deg2Rad(357.528 + 0.9856003*n))  // mean anomaly

	// ecliptic longitude with equation-of-center correction
	lambda := L + smath.Deg2Rad(1.915*math.Sin(g)+0.020*math.Sin(2*g))
	eps := smath.Deg2Rad(23.439 - 0.0000004*n) // obliquity

	ra := math.Atan2(math.Cos(eps)*math.Sin(lambda), math.Cos(lambda))
	dec := math.Asin(math.Sin(eps) * math.Sin(lambda))
	return smath.NormalizeRad(ra), dec
}

// moonRADec: truncated Meeus lunar series (the Astronomical Almanac's
// low-precision formulae), converted from ecliptic to equatorial.
func moonRADec(t time.Time) (float64, float64) {
	n := JulianDate(t) - j2000
	T := n / 36525.0

	sinDeg := func(d float64) float64 { return math.Sin(smath.Deg2Rad(d)) }

	lambdaDeg := 218.32 + 481267.881*T +
		6.29*sinDeg(135.0+477198.87*T) -
		1.27*sinDeg(259.3-413335.36*T) +
		0.66*sinDeg(235.7+890534.22*T) +
		0.21*sinDeg(269.9+954397.74*T) -
		0.19*sinDeg(357.5+35999.05*T) -
		0.11*sinDeg(186.5+966404.03*T)

	betaDeg := 5.13*sinDeg(93.3+483202.02*T) +
		0.28*sinDeg(228.2+960400.89*T) -
		0.28*sinDeg(318.3+6003.15*T) -
		0.17*sinDeg(217.6-407332.21*T)

	lambda := smath.NormalizeRad(smath.Deg2Rad(lambdaDeg))
	beta := smath.Deg2Rad(betaDeg)
	eps := smath.Deg2Rad(23.439 - 0.0000004*n)

	ra := math.Atan2(math.Sin(lambda)*math.Cos(eps)-math.Tan(beta)*math.Sin(eps), math.Cos(lambda))
	dec := math.Asin(math.Sin(beta)*math.Cos(eps) + math.Cos(beta)*math.Sin(eps)*math.Sin(lambda))
	return smath.NormalizeRad(ra), dec
}
