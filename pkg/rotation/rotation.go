// Package rotation computes the parallactic (field) rotation angle
// for a frame timestamp. Pure functions of time and geometry - no
// pixel data anywhere - so results are reproducible bit-for-bit and
// can be computed before or after calibration with identical results.
package rotation

import(
	"errors"
	"fmt"
	"math"
	"time"

	"sunstack/pkg/smath"
)

var ErrConfiguration = errors.New("rotation configuration error")

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

type Target int

const (
	Sun Target = iota
	Moon
)

func (t Target)String() string {
	switch t {
	case Sun: return "sun"
	case Moon: return "moon"
	}
	return fmt.Sprintf("target-%d", int(t))
}

func ParseTarget(s string) (Target, error) {
	switch s {
	case "sun": return Sun, nil
	case "moon": return Moon, nil
	}
	return 0, fmt.Errorf("%w: unknown target '%s' (want sun|moon)", ErrConfiguration, s)
}

type MountKind int

const (
	AltAz MountKind = iota
	Equatorial
)

func (m MountKind)String() string {
	switch m {
	case AltAz: return "alt-az"
	case Equatorial: return "equatorial"
	}
	return fmt.Sprintf("mount-%d", int(m))
}

func ParseMountKind(s string) (MountKind, error) {
	switch s {
	case "alt-az", "altaz": return AltAz, nil
	case "equatorial", "eq": return Equatorial, nil
	}
	return 0, fmt.Errorf("%w: unknown mount kind '%s' (want alt-az|equatorial)", ErrConfiguration, s)
}

// Observer is the geographic location, degrees, east-positive longitude.
type Observer struct {
	LatitudeDeg  float64
	LongitudeDeg float64
}

// JulianDate converts a time.Time (UTC) to Julian Date, using the
// standard astronomical algorithm.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y -= 1
		m += 12
	}

	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + B - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0

	return jd
}

// GMST is Greenwich Mean Sidereal Time in radians, IAU-82 model
// (Vallado Eq 3-47): seconds of time from Julian centuries of UT1
// since J2000.0, normalized to one day.
func GMST(t time.Time) float64 {
	jd := JulianDate(t)
	tUT1 := (jd - j2000) / 36525.0

	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// HourAngle of the target at the observer's meridian, radians,
// normalized to (-pi, pi] so it is negative east of the meridian.
func HourAngle(t time.Time, obs Observer, target Target) float64 {
	ra, _ := RADec(t, target)
	lst := smath.NormalizeRad(GMST(t) + smath.Deg2Rad(obs.LongitudeDeg))
	h := lst - ra
	h = smath.NormalizeRad(h)
	if h > math.Pi {
		h -= 2 * math.Pi
	}
	return h
}

// ParallacticAngle is the angle between the hour circle and the
// vertical circle through the target: the standard
//
//	q = atan2(sin H, tan(lat)*cos(dec) - sin(dec)*cos(H))
//
// As an alt-az target crosses the sky, q sweeps through zero at the
// meridian; the field rotates at dq/dt.
func ParallacticAngle(t time.Time, obs Observer, target Target) float64 {
	_, dec := RADec(t, target)
	h := HourAngle(t, obs, target)
	lat := smath.Deg2Rad(obs.LatitudeDeg)

	return math.Atan2(math.Sin(h), math.Tan(lat)*math.Cos(dec)-math.Sin(dec)*math.Cos(h))
}

// Angle returns the field rotation angle in radians for a frame
// captured at time t. Equatorial mounts track the field, so the angle
// is constant zero; alt-az mounts see the parallactic angle.
func Angle(t time.Time, obs Observer, target Target, mount MountKind) (float64, error) {
	switch mount {
	case Equatorial:
		return 0, nil
	case AltAz:
		if target != Sun && target != Moon {
			return 0, fmt.Errorf("%w: no ephemeris for target %d", ErrConfiguration, int(target))
		}
		return ParallacticAngle(t, obs, target), nil
	}
	return 0, fmt.Errorf("%w: unknown mount kind %d", ErrConfiguration, int(mount))
}
