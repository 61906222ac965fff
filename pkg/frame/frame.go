package frame

import(
	"fmt"
	"math"
	"time"
)

// ColorID describes the sensor's color layout, using the ID values
// from the SER container header.
type ColorID int32

const (
	ColorMono ColorID = 0
	ColorBayerRGGB ColorID = 8
	ColorBayerGRBG ColorID = 9
	ColorBayerGBRG ColorID = 10
	ColorBayerBGGR ColorID = 11
	ColorRGB ColorID = 100
	ColorBGR ColorID = 101
)

func (c ColorID)IsBayer() bool { return c >= ColorBayerRGGB && c <= ColorBayerBGGR }

func (c ColorID)Planes() int {
	if c == ColorRGB || c == ColorBGR {
		return 3
	}
	return 1
}

func (c ColorID)String() string {
	switch c {
	case ColorMono: return "MONO"
	case ColorBayerRGGB: return "BAYER_RGGB"
	case ColorBayerGRBG: return "BAYER_GRBG"
	case ColorBayerGBRG: return "BAYER_GBRG"
	case ColorBayerBGGR: return "BAYER_BGGR"
	case ColorRGB: return "RGB"
	case ColorBGR: return "BGR"
	}
	return fmt.Sprintf("COLOR_%d", int32(c))
}

// Geometry is the sensor layout shared by every frame in a session.
type Geometry struct {
	Width    int
	Height   int
	BitDepth int     // bits per sample plane, 8 or 16
	Color    ColorID
}

func (g Geometry)String() string {
	return fmt.Sprintf("%dx%d %dbit %s", g.Width, g.Height, g.BitDepth, g.Color)
}

func (g Geometry)Equals(o Geometry) bool {
	return g.Width == o.Width && g.Height == o.Height && g.BitDepth == o.BitDepth && g.Color == o.Color
}

// A Point is an integer pixel coordinate.
type Point struct {
	X int
	Y int
}

// A Grid is a single plane of linear pixel values, normalized so that
// a full-scale sensor sample is 1.0. Values are deliberately not
// clamped anywhere; calibration can push them slightly negative and
// stacking relies on linear accumulation.
type Grid struct {
	stride int
	values []float64
}

func NewGrid(w, h int) *Grid {
	return &Grid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func NewGridFromValues(w int, values []float64) *Grid {
	return &Grid{stride: w, values: values}
}

func (g *Grid)Dx() int            { return g.stride }
func (g *Grid)Dy() int            { return len(g.values) / g.stride }
func (g *Grid)Get(x, y int) float64      { return g.values[x + y*g.stride] }
func (g *Grid)Set(x, y int, v float64)   { g.values[x + y*g.stride] = v }
func (g *Grid)Values() []float64  { return g.values }

func (g1 *Grid)Copy() *Grid {
	g2 := Grid{stride: g1.stride, values: make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

// GetClamped reads with replicated edges, for neighborhood operators.
func (g *Grid)GetClamped(x, y int) float64 {
	if x < 0 { x = 0 }
	if y < 0 { y = 0 }
	if x >= g.Dx() { x = g.Dx()-1 }
	if y >= g.Dy() { y = g.Dy()-1 }
	return g.values[x + y*g.stride]
}

func (g *Grid)MinMax() (float64, float64) {
	min := math.MaxFloat64
	max := -1.0 * min
	for _, v := range g.values {
		if v > max { max = v }
		if v < min { min = v }
	}
	return min, max
}

func (g *Grid)Mean() float64 {
	sum := 0.0
	for _, v := range g.values {
		sum += v
	}
	return sum / float64(len(g.values))
}

func (g *Grid)Stats() string {
	min, max := g.MinMax()
	return fmt.Sprintf("grid[%dx%d, vals{%f,%f}]", g.Dx(), g.Dy(), min, max)
}

// A Frame is one exposure: a pixel grid plus the capture timestamp
// and its position in the source sequence. Immutable once decoded;
// calibration and resampling always build new grids.
type Frame struct {
	*Grid
	Geometry  Geometry
	Timestamp time.Time
	Index     int
}

func (f *Frame)String() string {
	return fmt.Sprintf("frame %d @ %s, %s", f.Index, f.Timestamp.UTC().Format("15:04:05.000"), f.Geometry)
}
