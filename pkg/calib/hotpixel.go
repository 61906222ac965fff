package calib

import(
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/stat"

	"sunstack/pkg/frame"
)

// A HotPixelMap lists sensor coordinates with defective response,
// declared in a TOML file:
//
//	sensor_width = 1936
//	sensor_height = 1216
//	hotpixels = [ [513, 14], [1022, 877] ]
type HotPixelMap struct {
	Width  int
	Height int
	Pixels []frame.Point
}

type hotPixelFile struct {
	SensorWidth  int     `toml:"sensor_width"`
	SensorHeight int     `toml:"sensor_height"`
	HotPixels    [][]int `toml:"hotpixels"`
}

func LoadHotPixelMap(path string) (*HotPixelMap, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hot pixel map read '%s': %v", path, err)
	}

	var f hotPixelFile
	if err := toml.Unmarshal(contents, &f); err != nil {
		return nil, fmt.Errorf("hot pixel map parse '%s': %v", path, err)
	}
	if f.SensorWidth <= 0 || f.SensorHeight <= 0 {
		return nil, fmt.Errorf("hot pixel map '%s': bad sensor size %dx%d", path, f.SensorWidth, f.SensorHeight)
	}

	m := &HotPixelMap{Width: f.SensorWidth, Height: f.SensorHeight}
	for _, xy := range f.HotPixels {
		if len(xy) != 2 {
			return nil, fmt.Errorf("hot pixel map '%s': entry %v is not an [x,y] pair", path, xy)
		}
		x, y := xy[0], xy[1]
		if x < 0 || x >= f.SensorWidth || y < 0 || y >= f.SensorHeight {
			return nil, fmt.Errorf("hot pixel map '%s': pixel (%d,%d) outside sensor", path, x, y)
		}
		m.Pixels = append(m.Pixels, frame.Point{X: x, Y: y})
	}
	return m, nil
}

// outlierKappa: how many frame sigmas a pixel must sit away from its
// neighborhood median before we call it defective on our own.
const outlierKappa = 6.0

// DetectOutliers flags pixels that disagree wildly with their
// 8-neighborhood median. Catches hot/stuck pixels not listed in any
// map. Deterministic: full scan, fixed threshold.
func DetectOutliers(g *frame.Grid) []frame.Point {
	sigma := stat.StdDev(g.Values(), nil)
	if sigma == 0 {
		return nil
	}
	limit := outlierKappa * sigma

	var out []frame.Point
	neighborhood := make([]float64, 0, 8)
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			neighborhood = neighborhood[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					neighborhood = append(neighborhood, g.GetClamped(x+dx, y+dy))
				}
			}
			sort.Float64s(neighborhood)
			median := (neighborhood[3] + neighborhood[4]) / 2
			if math.Abs(g.Get(x, y)-median) > limit {
				out = append(out, frame.Point{X: x, Y: y})
			}
		}
	}
	return out
}

// Repair inpaints the given pixels from their valid neighbors,
// fast-marching style: pixels with the most valid neighbors are
// filled first, and each filled pixel becomes a valid source for the
// ones after it. Distance-weighted over the 8-neighborhood, so
// clusters fill from their rim inward without directional bias.
func Repair(g *frame.Grid, bad []frame.Point) {
	if len(bad) == 0 {
		return
	}

	invalid := make(map[frame.Point]bool, len(bad))
	for _, p := range bad {
		if p.X >= 0 && p.X < g.Dx() && p.Y >= 0 && p.Y < g.Dy() {
			invalid[p] = true
		}
	}

	for len(invalid) > 0 {
		// March: pick the invalid pixels with the highest count of valid
		// neighbors this round.
		bestScore := -1
		var round []frame.Point
		for p := range invalid {
			score := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					q := frame.Point{X: p.X + dx, Y: p.Y + dy}
					if q.X < 0 || q.X >= g.Dx() || q.Y < 0 || q.Y >= g.Dy() || invalid[q] {
						continue
					}
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				round = round[:0]
			}
			if score == bestScore {
				round = append(round, p)
			}
		}

		if bestScore == 0 {
			// Every remaining pixel is fully surrounded by other invalid
			// pixels (pathological map). Leave them; nothing to copy from.
			return
		}

		// Fill the whole round from the grid state before the round, so
		// ties are order-independent.
		fills := make([]float64, len(round))
		for i, p := range round {
			sum, wsum := 0.0, 0.0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					q := frame.Point{X: p.X + dx, Y: p.Y + dy}
					if q.X < 0 || q.X >= g.Dx() || q.Y < 0 || q.Y >= g.Dy() || invalid[q] {
						continue
					}
					w := 1.0
					if dx != 0 && dy != 0 {
						w = 1.0 / math.Sqrt2
					}
					sum += w * g.Get(q.X, q.Y)
					wsum += w
				}
			}
			fills[i] = sum / wsum
		}
		for i, p := range round {
			g.Set(p.X, p.Y, fills[i])
			delete(invalid, p)
		}
	}
}
