package frame

// Bilinear debayering of the four RGGB-family mosaics down to a
// single luminance plane. Solar/lunar stacking is done in luminance;
// color sensors are only supported as a mosaic we flatten up front.

// DebayerLuminance interpolates the missing color samples at each
// photosite and returns (R+G+B)/3. Edge pixels use replicated
// neighbor lookups. Mono input is returned unchanged.
func DebayerLuminance(g *Grid, color ColorID) *Grid {
	if !color.IsBayer() {
		return g
	}

	// Offsets of the red photosite within the 2x2 mosaic cell
	var rx, ry int
	switch color {
	case ColorBayerRGGB: rx, ry = 0, 0
	case ColorBayerGRBG: rx, ry = 1, 0
	case ColorBayerGBRG: rx, ry = 0, 1
	case ColorBayerBGGR: rx, ry = 1, 1
	}

	width, height := g.Dx(), g.Dy()
	out := NewGrid(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			onRedRow := (y % 2) == (ry % 2)
			onRedCol := (x % 2) == (rx % 2)
			var r, gn, b float64

			switch {
			case onRedRow && onRedCol: // red photosite
				r = g.Get(x, y)
				gn = (g.GetClamped(x-1, y) + g.GetClamped(x+1, y) + g.GetClamped(x, y-1) + g.GetClamped(x, y+1)) / 4
				b = (g.GetClamped(x-1, y-1) + g.GetClamped(x+1, y-1) + g.GetClamped(x-1, y+1) + g.GetClamped(x+1, y+1)) / 4

			case onRedRow && !onRedCol: // green photosite, red row
				r = (g.GetClamped(x-1, y) + g.GetClamped(x+1, y)) / 2
				gn = g.Get(x, y)
				b = (g.GetClamped(x, y-1) + g.GetClamped(x, y+1)) / 2

			case !onRedRow && onRedCol: // green photosite, blue row
				r = (g.GetClamped(x, y-1) + g.GetClamped(x, y+1)) / 2
				gn = g.Get(x, y)
				b = (g.GetClamped(x-1, y) + g.GetClamped(x+1, y)) / 2

			default: // blue photosite
				r = (g.GetClamped(x-1, y-1) + g.GetClamped(x+1, y-1) + g.GetClamped(x-1, y+1) + g.GetClamped(x+1, y+1)) / 4
				gn = (g.GetClamped(x-1, y) + g.GetClamped(x+1, y) + g.GetClamped(x, y-1) + g.GetClamped(x, y+1)) / 4
				b = g.Get(x, y)
			}

			out.Set(x, y, (r + gn + b) / 3)
		}
	}

	return out
}
