// Package calib builds master calibration frames and applies them to
// light frames: dark/bias subtraction, flat-field division, and
// hot-pixel repair.
package calib

import(
	"errors"
	"fmt"
	"log"
	"sort"

	"gonum.org/v1/gonum/stat"

	"sunstack/pkg/frame"
)

var(
	ErrEmptyCalibrationSet = errors.New("empty calibration set")
	ErrGeometryMismatch    = errors.New("calibration geometry mismatch")
)

// Kind enumerates the calibration roles. The frames themselves are
// all the same shape; only the master-build policy and the apply
// stage differ by role.
type Kind int

const (
	Bias Kind = iota
	Dark
	Flat
	DarkFlat
)

func (k Kind)String() string {
	switch k {
	case Bias: return "bias"
	case Dark: return "dark"
	case Flat: return "flat"
	case DarkFlat: return "darkflat"
	}
	return fmt.Sprintf("kind-%d", int(k))
}

// A Master is the per-pixel statistical combination of a calibration
// sequence. Read-only once built; shared by every worker in a run.
type Master struct {
	Kind     Kind
	Geometry frame.Geometry
	Grid     *frame.Grid
	NFrames  int
}

func (m *Master)String() string {
	if m == nil {
		return "none"
	}
	return fmt.Sprintf("master %s (%d frames, %s)", m.Kind, m.NFrames, m.Geometry)
}

// Masters holds whichever masters a run has. Every field is optional;
// a nil master is an identity stage during Apply.
type Masters struct {
	Bias     *Master
	Dark     *Master
	Flat     *Master
	DarkFlat *Master
}

func (ms Masters)geometry() (frame.Geometry, bool) {
	for _, m := range []*Master{ms.Bias, ms.Dark, ms.Flat, ms.DarkFlat} {
		if m != nil {
			return m.Geometry, true
		}
	}
	return frame.Geometry{}, false
}

// Validate checks every present master against the light-frame
// geometry. A mismatch is a structural input error, caught before any
// frame work starts.
func (ms Masters)Validate(lightGeom frame.Geometry) error {
	for _, m := range []*Master{ms.Bias, ms.Dark, ms.Flat, ms.DarkFlat} {
		if m != nil && !m.Geometry.Equals(lightGeom) {
			return fmt.Errorf("%w: %s vs light %s", ErrGeometryMismatch, m, lightGeom)
		}
	}
	return nil
}

// sigmaClipKappa bounds for the clipped mean; two passes is enough
// for calibration sequences, which are near-uniform per pixel.
const(
	sigmaClipKappa  = 3.0
	sigmaClipPasses = 2
)

// BuildMaster combines a calibration sequence into one master frame.
// Each output pixel is the mean of that pixel across the sequence,
// sigma-clipped when requested.
func BuildMaster(frames []*frame.Frame, kind Kind, sigmaClip bool) (*Master, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no %s frames", ErrEmptyCalibrationSet, kind)
	}

	geom := frames[0].Geometry
	for _, f := range frames[1:] {
		if !f.Geometry.Equals(geom) {
			return nil, fmt.Errorf("%w: %s frame %d is %s, first is %s",
				ErrGeometryMismatch, kind, f.Index, f.Geometry, geom)
		}
	}

	w, h := frames[0].Dx(), frames[0].Dy()
	out := frame.NewGrid(w, h)

	samples := make([]float64, len(frames))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for i, f := range frames {
				samples[i] = f.Get(x, y)
			}
			if sigmaClip && len(samples) >= 3 {
				out.Set(x, y, clippedMean(samples))
			} else {
				out.Set(x, y, stat.Mean(samples, nil))
			}
		}
	}

	m := &Master{Kind: kind, Geometry: geom, Grid: out, NFrames: len(frames)}
	log.Printf("Built %s", m)
	return m, nil
}

// clippedMean iteratively discards samples further than kappa sigma
// from the running mean, then averages what's left. `samples` may be
// reordered but not otherwise modified.
func clippedMean(samples []float64) float64 {
	kept := samples
	for pass := 0; pass < sigmaClipPasses; pass++ {
		mean := stat.Mean(kept, nil)
		sigma := stat.StdDev(kept, nil)
		if sigma == 0 {
			return mean
		}

		lo, hi := mean-sigmaClipKappa*sigma, mean+sigmaClipKappa*sigma
		sort.Float64s(kept)
		i := sort.SearchFloat64s(kept, lo)
		j := sort.SearchFloat64s(kept, hi)
		if j-i < 1 {
			return mean // everything clipped away; fall back to plain mean
		}
		kept = kept[i:j]
	}
	return stat.Mean(kept, nil)
}
