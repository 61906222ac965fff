// Package quality scores frame sharpness so the pipeline can rank
// frames and drop the ones seeing was unkind to.
package quality

import(
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"sunstack/pkg/frame"
)

var ErrNoFramesSurviveQuality = errors.New("no frames survive quality limits")

// DefaultWindowSize is the side of the analysis window, centered on
// the object centroid.
const DefaultWindowSize = 128

// Sigma is the sharpness metric: the standard deviation of intensity
// about the local mean inside a window centered on (cx,cy). A sharp,
// well-focused disk edge produces high local contrast and a high
// sigma; seeing blur smears it down. Depends only on pixel data
// inside the window, never on sequence position.
func Sigma(g *frame.Grid, cx, cy, window int) float64 {
	if window < 2 {
		window = DefaultWindowSize
	}
	half := window / 2

	x0, x1 := cx-half, cx+half
	y0, y1 := cy-half, cy+half
	if x0 < 0 { x0 = 0 }
	if y0 < 0 { y0 = 0 }
	if x1 > g.Dx() { x1 = g.Dx() }
	if y1 > g.Dy() { y1 = g.Dy() }
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	values := make([]float64, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			values = append(values, g.Get(x, y))
		}
	}
	return stat.StdDev(values, nil)
}

// Limits filters a scored frame set. Every bound is optional in the
// sense that the zero-ish defaults pass everything.
type Limits struct {
	MinSigma      float64
	MaxSigma      float64 // 0 means unbounded
	TopPercentage float64 // keep only the best N% by sigma; 0 or 100 keeps all
	MaxFrames     int     // hard cap after ranking; 0 means unbounded
}

func (l Limits)String() string {
	return fmt.Sprintf("limits[sigma %g..%g, top %g%%, max %d]", l.MinSigma, l.MaxSigma, l.TopPercentage, l.MaxFrames)
}

// A Scored pairs a frame index with its sigma; the pipeline keeps
// these instead of the heavyweight frames.
type Scored struct {
	Index int
	Sigma float64
}

// Apply returns the surviving indices, best sigma first, plus the
// count rejected by the sigma bounds and by the ranking cut. An empty
// survivor set is the run-killing ErrNoFramesSurviveQuality.
func (l Limits)Apply(scored []Scored) (kept []Scored, rejectedBounds, rejectedRank int, err error) {
	for _, s := range scored {
		if s.Sigma < l.MinSigma || (l.MaxSigma > 0 && s.Sigma > l.MaxSigma) {
			rejectedBounds++
			continue
		}
		kept = append(kept, s)
	}

	// Ties break on sequence order, so the reference frame choice is
	// deterministic run to run.
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Sigma != kept[j].Sigma {
			return kept[i].Sigma > kept[j].Sigma
		}
		return kept[i].Index < kept[j].Index
	})

	limit := len(kept)
	if l.TopPercentage > 0 && l.TopPercentage < 100 {
		limit = int(float64(len(kept)) * l.TopPercentage / 100.0)
		if limit < 1 && len(kept) > 0 {
			limit = 1
		}
	}
	if l.MaxFrames > 0 && l.MaxFrames < limit {
		limit = l.MaxFrames
	}
	rejectedRank = len(kept) - limit
	kept = kept[:limit]

	if len(kept) == 0 {
		return nil, rejectedBounds, rejectedRank,
			fmt.Errorf("%w: %d rejected by bounds, %d by ranking", ErrNoFramesSurviveQuality, rejectedBounds, rejectedRank)
	}
	return kept, rejectedBounds, rejectedRank, nil
}
