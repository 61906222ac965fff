package frame

import(
	"github.com/skypies/util/histogram"
)

// Percentile returns the pixel value at quantile q in [0,1], using a
// fixed 1024-bucket histogram over [0,1]. Values outside [0,1]
// (possible after calibration) count toward the end buckets, which is
// fine for thresholding purposes.
func (g *Grid)Percentile(q float64) float64 {
	const nBuckets = 1024
	counts := make([]int, nBuckets)
	for _, v := range g.values {
		i := int(v * nBuckets)
		if i < 0 { i = 0 }
		if i >= nBuckets { i = nBuckets-1 }
		counts[i]++
	}

	want := int(q * float64(len(g.values)))
	seen := 0
	for i := 0; i < nBuckets; i++ {
		seen += counts[i]
		if seen >= want {
			return (float64(i) + 0.5) / nBuckets
		}
	}
	return 1.0
}

// DistributionString renders a coarse text histogram of the pixel
// values, for log output.
func (g *Grid)DistributionString() string {
	h := histogram.Histogram{NumBuckets: 16, ValMin: 0, ValMax: 256}
	for _, v := range g.values {
		h.Add(histogram.ScalarVal(int(v * 256)))
	}
	return h.String()
}
