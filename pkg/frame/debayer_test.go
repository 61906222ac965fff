package frame

import(
	"math"
	"testing"
)

func TestDebayerMonoPassthrough(t *testing.T) {
	g := NewGrid(4, 4)
	g.Set(1, 1, 0.5)
	if out := DebayerLuminance(g, ColorMono); out != g {
		t.Errorf("mono input should be returned unchanged")
	}
}

// mosaic builds a grid where every photosite of each color carries a
// constant value, for the given red-offset layout.
func mosaic(w, h, rx, ry int, r, gn, b float64) *Grid {
	g := NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			onRedRow := (y % 2) == (ry % 2)
			onRedCol := (x % 2) == (rx % 2)
			switch {
			case onRedRow && onRedCol:
				g.Set(x, y, r)
			case !onRedRow && !onRedCol:
				g.Set(x, y, b)
			default:
				g.Set(x, y, gn)
			}
		}
	}
	return g
}

func TestDebayerConstantChannels(t *testing.T) {
	// With constant per-channel values, every interior pixel's
	// interpolation is exact, so luminance is (r+g+b)/3 everywhere
	// inside the border.
	cases := []struct {
		color  ColorID
		rx, ry int
	}{
		{ColorBayerRGGB, 0, 0},
		{ColorBayerGRBG, 1, 0},
		{ColorBayerGBRG, 0, 1},
		{ColorBayerBGGR, 1, 1},
	}

	r, gn, b := 0.9, 0.5, 0.1
	want := (r + gn + b) / 3

	for _, c := range cases {
		g := mosaic(8, 8, c.rx, c.ry, r, gn, b)
		out := DebayerLuminance(g, c.color)
		for y := 1; y < 7; y++ {
			for x := 1; x < 7; x++ {
				if got := out.Get(x, y); math.Abs(got-want) > 1e-12 {
					t.Fatalf("%s: luminance at (%d,%d) = %f, want %f", c.color, x, y, got, want)
				}
			}
		}
	}
}

func TestDebayerUniform(t *testing.T) {
	// A uniform mosaic (all channels equal) must stay uniform,
	// including edges.
	g := NewGrid(6, 6)
	for i := range g.Values() {
		g.Values()[i] = 0.42
	}
	out := DebayerLuminance(g, ColorBayerRGGB)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if got := out.Get(x, y); math.Abs(got-0.42) > 1e-12 {
				t.Fatalf("uniform input produced %f at (%d,%d)", got, x, y)
			}
		}
	}
}
