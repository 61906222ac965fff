package calib

import(
	"fmt"
	"log"

	"sunstack/pkg/frame"
)

// nearZeroFlatFraction: flat pixels dimmer than this fraction of the
// flat's mean response can't be divided out meaningfully. They are
// treated as defects and handed to the inpainter.
const nearZeroFlatFraction = 0.05

// An Applier holds everything needed to calibrate light frames: the
// masters, the flat normalized to mean 1.0, and the set of pixels
// known-bad up front (explicit map entries plus near-zero flat
// pixels). Built once per run, then shared read-only by the workers.
type Applier struct {
	Masters  Masters
	HotMap   *HotPixelMap

	normFlat *frame.Grid   // flat response scaled to mean 1.0; nil if no flat
	fixed    []frame.Point // pixels to repair on every frame
}

// NewApplier validates master/map geometry agreement and precomputes
// the normalized flat. All masters are optional; with none present
// the applier is an identity plus outlier repair.
func NewApplier(ms Masters, hot *HotPixelMap, lightGeom frame.Geometry) (*Applier, error) {
	if err := ms.Validate(lightGeom); err != nil {
		return nil, err
	}
	if hot != nil {
		if hot.Width != lightGeom.Width || hot.Height != lightGeom.Height {
			return nil, fmt.Errorf("%w: hot pixel map is %dx%d, light is %s",
				ErrGeometryMismatch, hot.Width, hot.Height, lightGeom)
		}
	}

	a := &Applier{Masters: ms, HotMap: hot}
	if hot != nil {
		a.fixed = append(a.fixed, hot.Pixels...)
	}

	if ms.Flat != nil {
		a.normFlat = normalizeFlat(ms, &a.fixed)
	}

	if n := len(a.fixed); n > 0 {
		log.Printf("Calibration will repair %d known-bad pixels per frame", n)
	}
	return a, nil
}

// normalizeFlat subtracts the darkflat (or bias) signal from the
// flat, scales the response to mean 1.0, and flags near-zero pixels
// as defects.
func normalizeFlat(ms Masters, fixed *[]frame.Point) *frame.Grid {
	flat := ms.Flat.Grid.Copy()
	w, h := flat.Dx(), flat.Dy()

	var pedestal *frame.Grid
	if ms.DarkFlat != nil {
		pedestal = ms.DarkFlat.Grid
	} else if ms.Bias != nil {
		pedestal = ms.Bias.Grid
	}
	if pedestal != nil {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				flat.Set(x, y, flat.Get(x, y)-pedestal.Get(x, y))
			}
		}
	}

	mean := flat.Mean()
	if mean <= 0 {
		// A flat this broken gives us nothing to divide by; treat as absent.
		log.Printf("Flat has non-positive mean response %f, ignoring it", mean)
		return nil
	}

	floor := nearZeroFlatFraction
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := flat.Get(x, y) / mean
			flat.Set(x, y, v)
			if v < floor {
				*fixed = append(*fixed, frame.Point{X: x, Y: y})
				flat.Set(x, y, 1.0) // identity here; the pixel gets inpainted instead
			}
		}
	}
	return flat
}

// Apply calibrates one light frame: dark (or bias) subtraction, flat
// division, then repair of known-bad pixels and statistical outliers.
// The input frame is not modified.
func (a *Applier)Apply(light *frame.Frame) (*frame.Frame, error) {
	if err := a.Masters.Validate(light.Geometry); err != nil {
		return nil, fmt.Errorf("light frame %d: %w", light.Index, err)
	}

	w, h := light.Dx(), light.Dy()
	out := frame.NewGrid(w, h)

	dark := a.Masters.Dark
	bias := a.Masters.Bias

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := light.Get(x, y)
			switch {
			case dark != nil:
				v -= dark.Grid.Get(x, y)
			case bias != nil:
				v -= bias.Grid.Get(x, y)
			}
			if a.normFlat != nil {
				v /= a.normFlat.Get(x, y)
			}
			out.Set(x, y, v)
		}
	}

	// The repair set is the known-bad pixels plus whatever outliers
	// this particular frame shows; cosmic ray hits and warm pixels
	// move around from frame to frame.
	bad := a.fixed
	if outliers := DetectOutliers(out); len(outliers) > 0 {
		bad = append(append([]frame.Point{}, a.fixed...), outliers...)
	}
	Repair(out, bad)

	return &frame.Frame{
		Grid:      out,
		Geometry:  light.Geometry,
		Timestamp: light.Timestamp,
		Index:     light.Index,
	}, nil
}
