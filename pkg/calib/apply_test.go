package calib

import(
	"math"
	"os"
	"path/filepath"
	"testing"

	"sunstack/pkg/frame"
)

func gradientFrame(t *testing.T, w, h int, idx int) *frame.Frame {
	t.Helper()
	g := frame.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, float64(x+y)*0.01)
		}
	}
	return &frame.Frame{
		Grid:     g,
		Geometry: frame.Geometry{Width: w, Height: h, BitDepth: 16, Color: frame.ColorMono},
		Index:    idx,
	}
}

func TestApplierIdentity(t *testing.T) {
	// No masters, no hot map: calibration must change nothing.
	light := gradientFrame(t, 8, 8, 0)
	a, err := NewApplier(Masters{}, nil, light.Geometry)
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	out, err := a.Apply(light)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got, want := out.Get(x, y), light.Get(x, y); got != want {
				t.Fatalf("identity calibration changed (%d,%d): %f -> %f", x, y, want, got)
			}
		}
	}
	if out.Grid == light.Grid {
		t.Errorf("Apply must not alias the input grid")
	}
}

func TestApplierDarkSubtraction(t *testing.T) {
	geom := frame.Geometry{Width: 4, Height: 4, BitDepth: 16, Color: frame.ColorMono}

	darkGrid := frame.NewGrid(4, 4)
	for i := range darkGrid.Values() {
		darkGrid.Values()[i] = 0.05
	}
	dark := &Master{Kind: Dark, Geometry: geom, Grid: darkGrid, NFrames: 1}

	a, err := NewApplier(Masters{Dark: dark}, nil, geom)
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	light := &frame.Frame{Grid: frame.NewGrid(4, 4), Geometry: geom}
	for i := range light.Values() {
		light.Values()[i] = 0.30
	}

	out, err := a.Apply(light)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.Get(2, 2); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("dark-subtracted pixel = %f, want 0.25", got)
	}
}

func TestApplierFlatDivision(t *testing.T) {
	geom := frame.Geometry{Width: 4, Height: 2, BitDepth: 16, Color: frame.ColorMono}

	// Flat with left half at 0.4 and right half at 0.6: mean 0.5, so
	// the normalized response is 0.8 and 1.2.
	flatGrid := frame.NewGrid(4, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				flatGrid.Set(x, y, 0.4)
			} else {
				flatGrid.Set(x, y, 0.6)
			}
		}
	}
	flat := &Master{Kind: Flat, Geometry: geom, Grid: flatGrid, NFrames: 1}

	a, err := NewApplier(Masters{Flat: flat}, nil, geom)
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	light := &frame.Frame{Grid: frame.NewGrid(4, 2), Geometry: geom}
	for i := range light.Values() {
		light.Values()[i] = 0.48
	}

	out, err := a.Apply(light)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.Get(0, 0); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("vignetted pixel = %f, want 0.48/0.8 = 0.6", got)
	}
	if got := out.Get(3, 1); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("bright-response pixel = %f, want 0.48/1.2 = 0.4", got)
	}
}

func TestApplierRepairsMappedHotPixels(t *testing.T) {
	// A uniform frame with three stuck-bright pixels listed in the hot
	// map: after calibration each one must match its surroundings.
	geom := frame.Geometry{Width: 16, Height: 16, BitDepth: 16, Color: frame.ColorMono}

	bad := []frame.Point{{X: 3, Y: 4}, {X: 10, Y: 10}, {X: 15, Y: 0}} // includes a corner
	hot := &HotPixelMap{Width: 16, Height: 16, Pixels: bad}

	a, err := NewApplier(Masters{}, hot, geom)
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	light := &frame.Frame{Grid: frame.NewGrid(16, 16), Geometry: geom}
	for i := range light.Values() {
		light.Values()[i] = 0.4
	}
	for _, p := range bad {
		light.Set(p.X, p.Y, 1.0)
	}

	out, err := a.Apply(light)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, p := range bad {
		if got := out.Get(p.X, p.Y); math.Abs(got-0.4) > 1e-12 {
			t.Errorf("hot pixel (%d,%d) = %f after repair, want 0.4", p.X, p.Y, got)
		}
	}
}

func TestApplierRepairsDetectedOutliers(t *testing.T) {
	// No hot map at all: a cosmic-ray-style spike must still be found
	// by the outlier scan and repaired during Apply.
	geom := frame.Geometry{Width: 32, Height: 32, BitDepth: 16, Color: frame.ColorMono}
	a, err := NewApplier(Masters{}, nil, geom)
	if err != nil {
		t.Fatalf("NewApplier: %v", err)
	}

	light := &frame.Frame{Grid: frame.NewGrid(32, 32), Geometry: geom}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			light.Set(x, y, float64(x+y)*0.001)
		}
	}
	light.Set(17, 9, 1.0)

	out, err := a.Apply(light)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// The ramp is symmetric about every pixel, so the inpainted value
	// is the ramp value itself.
	if got := out.Get(17, 9); math.Abs(got-0.026) > 1e-9 {
		t.Errorf("spike repaired to %f, want the ramp value 0.026", got)
	}
	// And its untouched neighbor stays on the ramp.
	if got := out.Get(16, 9); math.Abs(got-0.025) > 1e-9 {
		t.Errorf("neighbor = %f, want 0.025", got)
	}
}

func TestApplierHotMapGeometryMismatch(t *testing.T) {
	geom := frame.Geometry{Width: 16, Height: 16, BitDepth: 16, Color: frame.ColorMono}
	hot := &HotPixelMap{Width: 8, Height: 8}
	if _, err := NewApplier(Masters{}, hot, geom); err == nil {
		t.Errorf("hot map for the wrong sensor should be rejected")
	}
}

func TestLoadHotPixelMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.toml")
	contents := `
sensor_width = 64
sensor_height = 48
hotpixels = [ [3, 4], [63, 47] ]
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadHotPixelMap(path)
	if err != nil {
		t.Fatalf("LoadHotPixelMap: %v", err)
	}
	if m.Width != 64 || m.Height != 48 || len(m.Pixels) != 2 {
		t.Errorf("map = %dx%d with %d pixels, want 64x48 with 2", m.Width, m.Height, len(m.Pixels))
	}
	if m.Pixels[0] != (frame.Point{X: 3, Y: 4}) {
		t.Errorf("first pixel = %v, want (3,4)", m.Pixels[0])
	}
}

func TestLoadHotPixelMapRejectsOutOfBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.toml")
	contents := `
sensor_width = 64
sensor_height = 48
hotpixels = [ [64, 0] ]
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHotPixelMap(path); err == nil {
		t.Errorf("out-of-bounds hot pixel should be rejected")
	}
}

func TestDetectOutliers(t *testing.T) {
	// Gentle gradient plus one huge spike: only the spike should be
	// flagged.
	g := frame.NewGrid(32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			g.Set(x, y, float64(x+y)*0.001)
		}
	}
	g.Set(17, 9, 1.0)

	out := DetectOutliers(g)
	if len(out) != 1 || out[0] != (frame.Point{X: 17, Y: 9}) {
		t.Errorf("outliers = %v, want exactly [(17,9)]", out)
	}
}

func TestDetectOutliersFlatFrame(t *testing.T) {
	g := frame.NewGrid(8, 8)
	if out := DetectOutliers(g); out != nil {
		t.Errorf("flat frame produced outliers: %v", out)
	}
}

func TestRepairSinglePixelOnRamp(t *testing.T) {
	// The neighborhood of a ramp is symmetric about each pixel, so the
	// repaired value must equal the ramp exactly.
	g := frame.NewGrid(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			g.Set(x, y, float64(x)*0.1)
		}
	}
	g.Set(4, 4, 9.0)

	Repair(g, []frame.Point{{X: 4, Y: 4}})
	if got := g.Get(4, 4); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("repaired ramp pixel = %f, want 0.4", got)
	}
}

func TestRepairCluster(t *testing.T) {
	// A 2x2 dead cluster on a uniform field fills back to the field
	// value, rim first.
	g := frame.NewGrid(10, 10)
	for i := range g.Values() {
		g.Values()[i] = 0.7
	}
	bad := []frame.Point{{X: 4, Y: 4}, {X: 5, Y: 4}, {X: 4, Y: 5}, {X: 5, Y: 5}}
	for _, p := range bad {
		g.Set(p.X, p.Y, 0)
	}

	Repair(g, bad)
	for _, p := range bad {
		if got := g.Get(p.X, p.Y); math.Abs(got-0.7) > 1e-9 {
			t.Errorf("cluster pixel (%d,%d) = %f, want 0.7", p.X, p.Y, got)
		}
	}
}

func TestRepairIgnoresOffGridPoints(t *testing.T) {
	g := frame.NewGrid(4, 4)
	Repair(g, []frame.Point{{X: -1, Y: 0}, {X: 100, Y: 100}}) // must not panic
}
