// Package drizzle integrates aligned, derotated frames onto an
// (optionally upsampled) output canvas. Each source pixel's flux is
// forward-mapped through the frame's affine transform and deposited
// onto the canvas with a sub-pixel drop footprint, accumulating both
// value and weight; the final image is value/weight per pixel.
//
// Deposits are plain sums, so integration is associative and
// commutative per destination pixel: frames can be processed in any
// order, on any number of workers, with only the merge step
// synchronized.
package drizzle

import(
	"errors"
	"fmt"
	"math"

	"sunstack/pkg/frame"
	"sunstack/pkg/smath"
)

var ErrConfiguration = errors.New("drizzle configuration error")

// Scale is the output upsampling factor.
type Scale float64

const (
	Scale1x  Scale = 1.0
	Scale15x Scale = 1.5
	Scale2x  Scale = 2.0
	Scale3x  Scale = 3.0
)

func ParseScale(v float64) (Scale, error) {
	switch Scale(v) {
	case Scale1x, Scale15x, Scale2x, Scale3x:
		return Scale(v), nil
	}
	return 0, fmt.Errorf("%w: scale %g (want 1.0, 1.5, 2.0 or 3.0)", ErrConfiguration, v)
}

// Drop is the footprint a source pixel's flux lands with.
type Drop int

const (
	DropPoint    Drop = iota // all flux onto the nearest output pixel
	DropBilinear             // fractional weights over the 2x2 neighborhood
)

func ParseDrop(s string) (Drop, error) {
	switch s {
	case "point": return DropPoint, nil
	case "bilinear", "": return DropBilinear, nil
	}
	return 0, fmt.Errorf("%w: drop footprint '%s' (want point|bilinear)", ErrConfiguration, s)
}

func (d Drop)String() string {
	if d == DropPoint {
		return "point"
	}
	return "bilinear"
}

// FrameTransform composes the per-frame registration into one affine
// map from source pixel coords to output canvas coords: translate so
// the frame centroid lands on the reference centroid, derotate about
// the reference centroid, then scale up to the canvas.
func FrameTransform(tx, ty, derotateRad, refX, refY float64, scale Scale) smath.Aff3 {
	m := smath.Identity().Translate(tx, ty)
	if derotateRad != 0 {
		m = smath.RotateAbout(-derotateRad, refX, refY).Mult(m)
	}
	if scale != Scale1x {
		m = smath.Identity().Scale(float64(scale)).Mult(m)
	}
	return m
}

// An Accumulator is the output canvas: a value plane and a parallel
// weight plane. One Accumulator per worker during stacking, merged
// into the run's master Accumulator under the stacker's lock.
type Accumulator struct {
	Value  *frame.Grid
	Weight *frame.Grid
	Scale  Scale
	Frames int // how many frames have been deposited
}

func NewAccumulator(srcW, srcH int, scale Scale) *Accumulator {
	w := int(math.Ceil(float64(srcW) * float64(scale)))
	h := int(math.Ceil(float64(srcH) * float64(scale)))
	return &Accumulator{
		Value:  frame.NewGrid(w, h),
		Weight: frame.NewGrid(w, h),
		Scale:  scale,
	}
}

// AddFrame deposits every source pixel through xform. Values are
// accumulated linearly, never clamped; flux conservation is what
// makes the final normalization meaningful.
func (a *Accumulator)AddFrame(g *frame.Grid, xform smath.Aff3, drop Drop) {
	w, h := a.Value.Dx(), a.Value.Dy()

	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			v := g.Get(x, y)
			u, t := xform.Apply(float64(x), float64(y))

			switch drop {
			case DropPoint:
				ui, ti := int(math.Round(u)), int(math.Round(t))
				if ui < 0 || ui >= w || ti < 0 || ti >= h {
					continue
				}
				a.Value.Set(ui, ti, a.Value.Get(ui, ti)+v)
				a.Weight.Set(ui, ti, a.Weight.Get(ui, ti)+1)

			default: // DropBilinear
				u0, t0 := math.Floor(u), math.Floor(t)
				fu, ft := u-u0, t-t0
				a.deposit(int(u0), int(t0), v, (1-fu)*(1-ft))
				a.deposit(int(u0)+1, int(t0), v, fu*(1-ft))
				a.deposit(int(u0), int(t0)+1, v, (1-fu)*ft)
				a.deposit(int(u0)+1, int(t0)+1, v, fu*ft)
			}
		}
	}
	a.Frames++
}

func (a *Accumulator)deposit(x, y int, v, weight float64) {
	if weight <= 0 || x < 0 || x >= a.Value.Dx() || y < 0 || y >= a.Value.Dy() {
		return
	}
	a.Value.Set(x, y, a.Value.Get(x, y)+v*weight)
	a.Weight.Set(x, y, a.Weight.Get(x, y)+weight)
}

// Merge folds another accumulator of the same shape into this one.
// The caller is responsible for serializing concurrent merges.
func (a *Accumulator)Merge(other *Accumulator) error {
	if a.Value.Dx() != other.Value.Dx() || a.Value.Dy() != other.Value.Dy() {
		return fmt.Errorf("%w: merging %dx%d into %dx%d", ErrConfiguration,
			other.Value.Dx(), other.Value.Dy(), a.Value.Dx(), a.Value.Dy())
	}
	av, aw := a.Value.Values(), a.Weight.Values()
	ov, ow := other.Value.Values(), other.Weight.Values()
	for i := range av {
		av[i] += ov[i]
		aw[i] += ow[i]
	}
	a.Frames += other.Frames
	return nil
}

// Finalize divides accumulated value by accumulated weight. Pixels
// nothing landed on keep weight zero and stay at background zero -
// never divided.
func (a *Accumulator)Finalize() *frame.Grid {
	out := frame.NewGrid(a.Value.Dx(), a.Value.Dy())
	for y := 0; y < out.Dy(); y++ {
		for x := 0; x < out.Dx(); x++ {
			w := a.Weight.Get(x, y)
			if w > 0 {
				out.Set(x, y, a.Value.Get(x, y)/w)
			}
		}
	}
	return out
}
