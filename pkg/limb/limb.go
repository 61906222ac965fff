// Package limb fits and removes limb darkening - the radial falloff
// from disk center to limb that solar and lunar disks show. The
// stacked (or per-frame) image is divided by a normalized radial
// brightness model, flattening the disk without touching the sky.
package limb

import(
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"sunstack/pkg/frame"
)

var ErrLimbModelFit = errors.New("limb darkening model fit failed")

const(
	polyDegree = 4

	// minProfileBins: fewer radial samples than this and the fit is
	// meaningless (object too small in frame).
	minProfileBins = 8

	// modelFloor keeps the division bounded right at the limb, where
	// the model heads toward zero.
	modelFloor = 0.05
)

// A Model is a normalized radial brightness profile: At(r) is mean
// intensity at radius r relative to the disk center's intensity.
type Model struct {
	Radius float64
	coeffs []float64 // polynomial in (r/Radius), constant term first; nil for cosine law
	u      float64   // cosine-law coefficient when coeffs is nil
}

// CosineLaw builds the classic limb darkening law
// I(r)/I(0) = 1 - u*(1 - mu), mu = sqrt(1-(r/R)^2), with the given
// coefficient. Used when an empirical fit isn't wanted.
func CosineLaw(u, radius float64) *Model {
	return &Model{Radius: radius, u: u}
}

// FitProfile fits a polynomial to the disk's mean radial intensity
// profile. The profile is binned at one-pixel resolution out to the
// disk radius; bins with no samples are skipped.
func FitProfile(g *frame.Grid, cx, cy, radius float64) (*Model, error) {
	if radius < float64(minProfileBins) {
		return nil, fmt.Errorf("%w: disk radius %.1fpx too small", ErrLimbModelFit, radius)
	}

	nBins := int(radius)
	sums := make([]float64, nBins)
	counts := make([]int, nBins)

	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			r := math.Hypot(float64(x)-cx, float64(y)-cy)
			if bin := int(r); bin < nBins {
				sums[bin] += g.Get(x, y)
				counts[bin]++
			}
		}
	}

	var rs, is []float64
	for bin := 0; bin < nBins; bin++ {
		if counts[bin] == 0 {
			continue
		}
		rs = append(rs, (float64(bin)+0.5)/radius)
		is = append(is, sums[bin]/float64(counts[bin]))
	}
	if len(rs) < minProfileBins {
		return nil, fmt.Errorf("%w: only %d radial bins with samples, need %d",
			ErrLimbModelFit, len(rs), minProfileBins)
	}

	coeffs, err := polyFit(rs, is, polyDegree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLimbModelFit, err)
	}

	// Normalize so the model is 1.0 at disk center.
	center := coeffs[0]
	if center <= 0 {
		return nil, fmt.Errorf("%w: fitted center intensity %f not positive", ErrLimbModelFit, center)
	}
	for i := range coeffs {
		coeffs[i] /= center
	}

	return &Model{Radius: radius, coeffs: coeffs}, nil
}

// polyFit solves the least-squares polynomial through (xs, ys) via QR
// on the Vandermonde matrix.
func polyFit(xs, ys []float64, degree int) ([]float64, error) {
	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}
	b := mat.NewDense(len(ys), 1, ys)

	var qr mat.QR
	qr.Factorize(a)

	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return nil, err
	}

	coeffs := make([]float64, degree+1)
	for j := 0; j <= degree; j++ {
		coeffs[j] = sol.At(j, 0)
	}
	return coeffs, nil
}

// At evaluates the normalized model at radius r (in pixels), floored
// so callers can divide by it safely.
func (m *Model)At(r float64) float64 {
	x := r / m.Radius
	if x > 1 {
		x = 1
	}

	var v float64
	if m.coeffs == nil {
		mu := math.Sqrt(1 - x*x)
		v = 1 - m.u*(1-mu)
	} else {
		pow := 1.0
		for _, c := range m.coeffs {
			v += c * pow
			pow *= x
		}
	}

	if v < modelFloor {
		v = modelFloor
	}
	return v
}

// Correct divides the disk by the model, leaving everything outside
// the disk radius untouched. Returns a new grid.
func Correct(g *frame.Grid, cx, cy float64, m *Model) *frame.Grid {
	out := g.Copy()
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			r := math.Hypot(float64(x)-cx, float64(y)-cy)
			if r <= m.Radius {
				out.Set(x, y, g.Get(x, y)/m.At(r))
			}
		}
	}
	return out
}
