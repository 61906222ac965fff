package stack

import(
	"log"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// workerCount sizes the stacking pool. Frames are CPU-bound work, so
// physical cores is the natural ceiling; each in-flight frame also
// costs a few float64 planes, so on small machines the free-memory
// budget can bite first.
func workerCount(cfg Config, frameW, frameH int) int {
	n := cfg.Workers
	if n <= 0 {
		n = cpuid.CPU.PhysicalCores
		if n <= 0 {
			n = 4
		}
	}

	// Working set per worker: source grid, calibrated grid, and a
	// scaled accumulator pair.
	scale := float64(cfg.Scale)
	perWorker := uint64(float64(frameW*frameH*8) * (2 + 2*scale*scale))
	if perWorker > 0 {
		if budget := memory.FreeMemory() / 2; budget > 0 {
			if cap := int(budget / perWorker); cap > 0 && cap < n {
				log.Printf("Limiting to %d workers (of %d) to fit memory budget", cap, n)
				n = cap
			}
		}
	}

	if n < 1 {
		n = 1
	}
	return n
}
