package rotation

import(
	"math"
	"testing"
	"time"

	"sunstack/pkg/smath"
)

func TestJulianDateJ2000(t *testing.T) {
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451545.0) > 1e-9 {
		t.Errorf("JD(J2000) = %f, want 2451545.0", jd)
	}
}

func TestJulianDateKnownValue(t *testing.T) {
	// Meeus, example 7.a: 1957 Oct 4.81 (Sputnik launch) is JD 2436116.31.
	jd := JulianDate(time.Date(1957, 10, 4, 19, 26, 24, 0, time.UTC))
	if math.Abs(jd-2436116.31) > 1e-4 {
		t.Errorf("JD(1957-10-04 19:26:24) = %f, want 2436116.31", jd)
	}
}

func TestGMSTAtJ2000(t *testing.T) {
	// GMST at the J2000 epoch is 280.46062 degrees.
	gmst := GMST(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	want := smath.Deg2Rad(280.46062)
	if math.Abs(gmst-want) > 1e-5 {
		t.Errorf("GMST(J2000) = %f rad, want %f", gmst, want)
	}
}

func TestGMSTAdvancesSiderealRate(t *testing.T) {
	// In 24 hours of UT the sidereal clock gains ~3m56.6s, i.e. the
	// GMST angle advances 2*pi plus ~0.01721 rad.
	t0 := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	g0 := GMST(t0)
	g1 := GMST(t0.Add(24 * time.Hour))

	gain := smath.NormalizeRad(g1 - g0)
	want := 2 * math.Pi * (236.55 / 86400.0)
	if math.Abs(gain-want) > 1e-4 {
		t.Errorf("sidereal gain over 24h = %f rad, want %f", gain, want)
	}
}

func TestSunDeclinationAtEquinox(t *testing.T) {
	// 2026 March equinox: solar declination crosses zero.
	_, dec := RADec(time.Date(2026, 3, 20, 14, 46, 0, 0, time.UTC), Sun)
	if math.Abs(dec) > smath.Deg2Rad(0.6) {
		t.Errorf("solar dec at equinox = %f deg, want ~0", smath.Rad2Deg(dec))
	}
}

func TestSunDeclinationAtSolstice(t *testing.T) {
	// June solstice: declination near +23.44 degrees.
	_, dec := RADec(time.Date(2026, 6, 21, 2, 0, 0, 0, time.UTC), Sun)
	got := smath.Rad2Deg(dec)
	if got < 23.0 || got > 23.8 {
		t.Errorf("solar dec at solstice = %f deg, want ~23.44", got)
	}
}

func TestMoonPositionPlausible(t *testing.T) {
	// The Moon stays within ~29 degrees of the equator; RA is an angle.
	for day := 0; day < 28; day += 3 {
		ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
		ra, dec := RADec(ts, Moon)
		if ra < 0 || ra >= 2*math.Pi {
			t.Errorf("%s: lunar RA = %f, want [0,2pi)", ts.Format("2006-01-02"), ra)
		}
		if math.Abs(dec) > smath.Deg2Rad(29.5) {
			t.Errorf("%s: lunar dec = %f deg, out of range", ts.Format("2006-01-02"), smath.Rad2Deg(dec))
		}
	}
}

func TestEquatorialMountAngleIsZero(t *testing.T) {
	obs := Observer{LatitudeDeg: 34.0, LongitudeDeg: -118.0}
	base := time.Date(2026, 8, 29, 16, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		a, err := Angle(base.Add(time.Duration(i)*17*time.Minute), obs, Sun, Equatorial)
		if err != nil {
			t.Fatalf("Angle: %v", err)
		}
		if a != 0 {
			t.Errorf("equatorial mount rotation = %f, want 0", a)
		}
	}
}

func TestParallacticAngleSweepsThroughMeridian(t *testing.T) {
	// Northern observer watching the Sun around local solar noon: the
	// parallactic angle is negative east of the meridian, positive
	// west, and strictly increasing in between. Solar transit for
	// longitude 118W is near 19:52 UTC.
	obs := Observer{LatitudeDeg: 34.0, LongitudeDeg: -118.0}
	start := time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC)

	var qs []float64
	for i := 0; i <= 18; i++ {
		ts := start.Add(time.Duration(i) * 10 * time.Minute)
		q, err := Angle(ts, obs, Sun, AltAz)
		if err != nil {
			t.Fatalf("Angle: %v", err)
		}
		qs = append(qs, q)
	}

	if qs[0] >= 0 {
		t.Errorf("east of meridian q = %f, want negative", qs[0])
	}
	if qs[len(qs)-1] <= 0 {
		t.Errorf("west of meridian q = %f, want positive", qs[len(qs)-1])
	}
	for i := 1; i < len(qs); i++ {
		if qs[i] <= qs[i-1] {
			t.Errorf("q not increasing through transit: q[%d]=%f <= q[%d]=%f", i, qs[i], i-1, qs[i-1])
		}
	}
}

func TestHourAngleSignConvention(t *testing.T) {
	obs := Observer{LatitudeDeg: 34.0, LongitudeDeg: -118.0}
	// Well before local solar noon the Sun is east of the meridian.
	h := HourAngle(time.Date(2026, 8, 29, 17, 0, 0, 0, time.UTC), obs, Sun)
	if h >= 0 {
		t.Errorf("pre-transit hour angle = %f, want negative", h)
	}
	// Well after, west.
	h = HourAngle(time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC), obs, Sun)
	if h <= 0 {
		t.Errorf("post-transit hour angle = %f, want positive", h)
	}
}

func TestParseTarget(t *testing.T) {
	if tgt, err := ParseTarget("sun"); err != nil || tgt != Sun {
		t.Errorf("ParseTarget(sun) = %v, %v", tgt, err)
	}
	if tgt, err := ParseTarget("moon"); err != nil || tgt != Moon {
		t.Errorf("ParseTarget(moon) = %v, %v", tgt, err)
	}
	if _, err := ParseTarget("jupiter"); err == nil {
		t.Errorf("ParseTarget(jupiter) should fail")
	}
}

func TestParseMountKind(t *testing.T) {
	for _, s := range []string{"alt-az", "altaz"} {
		if m, err := ParseMountKind(s); err != nil || m != AltAz {
			t.Errorf("ParseMountKind(%s) = %v, %v", s, m, err)
		}
	}
	for _, s := range []string{"equatorial", "eq"} {
		if m, err := ParseMountKind(s); err != nil || m != Equatorial {
			t.Errorf("ParseMountKind(%s) = %v, %v", s, m, err)
		}
	}
	if _, err := ParseMountKind("dobsonian"); err == nil {
		t.Errorf("ParseMountKind(dobsonian) should fail")
	}
}
