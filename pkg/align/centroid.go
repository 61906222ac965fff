// Package align locates the target disk in each frame. Solar and
// lunar work registers frames on the intensity-weighted center of
// mass of the disk, not on feature matching - the disk is the only
// feature there is.
package align

import(
	"errors"
	"fmt"
	"math"

	"sunstack/pkg/frame"
)

var ErrCentroidNotFound = errors.New("object centroid not found")

// MinDiskFraction: if fewer than this fraction of the frame's pixels
// clear the detection threshold, the object is missing or mostly
// clipped off the edge, and the centroid would register on noise.
const MinDiskFraction = 0.001

// adaptiveQuantile picks the sky/disk split when no absolute
// threshold is configured. The disk is bright and compact, sky is the
// bulk, so a high percentile lands between them.
const adaptiveQuantile = 0.75

// A Centroid is the sub-pixel center of mass of the illuminated disk,
// plus enough context to sanity-check and to size the limb fit.
type Centroid struct {
	X, Y       float64
	Threshold  float64 // the detection threshold actually used
	DiskPixels int     // count of pixels above threshold
	DiskRadius float64 // radius estimate, assuming a circular disk
}

func (c Centroid)String() string {
	return fmt.Sprintf("centroid(%.2f,%.2f) disk r=%.1f (%d px over %.4f)",
		c.X, c.Y, c.DiskRadius, c.DiskPixels, c.Threshold)
}

// FindCentroid computes the intensity-weighted center of mass over
// pixels above the detection threshold. Pass threshold <= 0 to use an
// adaptive percentile of the frame's own histogram instead.
//
// A frame whose illuminated area is below MinDiskFraction gets
// ErrCentroidNotFound; the caller records it and moves on, it is not
// fatal to the run.
func FindCentroid(g *frame.Grid, threshold float64) (Centroid, error) {
	if threshold <= 0 {
		threshold = g.Percentile(adaptiveQuantile)
	}

	sumX, sumY, sumW := 0.0, 0.0, 0.0
	n := 0
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			v := g.Get(x, y)
			if v <= threshold {
				continue
			}
			sumX += float64(x) * v
			sumY += float64(y) * v
			sumW += v
			n++
		}
	}

	minPixels := int(MinDiskFraction * float64(g.Dx()*g.Dy()))
	if minPixels < 1 {
		minPixels = 1
	}
	if n < minPixels || sumW <= 0 {
		return Centroid{}, fmt.Errorf("%w: %d pixels above %.4f, need %d",
			ErrCentroidNotFound, n, threshold, minPixels)
	}

	return Centroid{
		X:          sumX / sumW,
		Y:          sumY / sumW,
		Threshold:  threshold,
		DiskPixels: n,
		DiskRadius: math.Sqrt(float64(n) / math.Pi),
	}, nil
}
