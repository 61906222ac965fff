package stack

import(
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sunstack/pkg/align"
	"sunstack/pkg/drizzle"
	"sunstack/pkg/frame"
	"sunstack/pkg/limb"
	"sunstack/pkg/quality"
	"sunstack/pkg/rotation"
	"sunstack/pkg/smath"
)

var ErrNoFramesAligned = errors.New("no frames could be aligned")

// A FrameRecord is the lightweight per-frame state the pipeline
// carries between passes, so whole frames never need to stay
// resident.
type FrameRecord struct {
	Index     int
	Timestamp time.Time
	Centroid  align.Centroid
	Sigma     float64
	Rotation  float64 // field rotation at Timestamp, radians
	Err       error   // per-frame recoverable failure, recorded not raised
}

// A Result is the stacked image plus its provenance.
type Result struct {
	Image      *frame.Grid
	Weight     *frame.Grid
	Provenance Provenance
}

// Run executes the whole pipeline: analyze (centroid + sigma) ->
// quality limiting -> rotation lookup -> drizzle stacking ->
// finalize -> optional post-stack limb correction.
//
// Per-frame failures are collected into the provenance tally; the run
// only fails when the survivor set goes empty, or on cancellation.
func Run(ctx context.Context, c *Context) (*Result, error) {
	started := time.Now()
	prov := NewProvenance(c.Config)
	prov.TotalFrames = c.Lights.Count()

	// Rotation config problems must surface before any frame work.
	if _, err := rotation.Angle(time.Now(), c.Config.Observer(), c.Config.TargetKind, c.Config.MountKind); err != nil {
		return nil, err
	}

	log.Printf("Analyzing %d frames", c.Lights.Count())
	records, err := c.analyzeFrames(ctx)
	if err != nil {
		return nil, err
	}

	var scored []quality.Scored
	for _, rec := range records {
		if rec.Err != nil {
			prov.Reject("centroid not found")
			continue
		}
		scored = append(scored, quality.Scored{Index: rec.Index, Sigma: rec.Sigma})
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("%w: all %d frames failed centroid detection", ErrNoFramesAligned, len(records))
	}

	kept, rejectedBounds, rejectedRank, err := c.Config.Limits().Apply(scored)
	if err != nil {
		return nil, err
	}
	prov.RejectN("sigma out of bounds", rejectedBounds)
	prov.RejectN("below quality rank cut", rejectedRank)

	// The reference is the sharpest survivor: everything else is
	// registered to its centroid and derotated to its angle.
	ref := records[kept[0].Index]
	prov.ReferenceFrame = ref.Index
	prov.ReferenceSigma = ref.Sigma
	log.Printf("Reference is frame %d (sigma %.5f), %s", ref.Index, ref.Sigma, ref.Centroid)

	for _, s := range kept {
		rec := records[s.Index]
		angle, err := rotation.Angle(rec.Timestamp, c.Config.Observer(), c.Config.TargetKind, c.Config.MountKind)
		if err != nil {
			return nil, err
		}
		records[s.Index].Rotation = angle
	}
	refAngle := records[ref.Index].Rotation

	log.Printf("Stacking %d frames at %gx (%s drop)", len(kept), float64(c.Config.Scale), c.Config.Drop)
	acc, limbFailures, err := c.stackFrames(ctx, records, kept, ref, refAngle)
	if err != nil {
		return nil, err
	}
	prov.RejectN("limb model fit failed (uncorrected)", limbFailures)

	stacked := acc.Finalize()

	if c.Config.Limb == LimbPostStack {
		scale := float64(c.Config.Scale)
		cx, cy := ref.Centroid.X*scale, ref.Centroid.Y*scale
		radius := ref.Centroid.DiskRadius * scale
		if corrected, err := correctLimb(c.Config, stacked, cx, cy, radius); err != nil {
			log.Printf("Warning: post-stack limb correction skipped: %v", err)
			prov.LimbCorrected = false
		} else {
			stacked = corrected
			prov.LimbCorrected = true
		}
	}

	prov.UsedFrames = len(kept)
	prov.Elapsed = time.Since(started)
	log.Printf("Stacked %d/%d frames in %s", prov.UsedFrames, prov.TotalFrames, prov.Elapsed.Round(time.Millisecond))

	return &Result{Image: stacked, Weight: acc.Weight, Provenance: prov}, nil
}

// Analyze runs only the per-frame analysis pass: every frame gets
// read, calibrated, centroid-located and sigma-scored. The stack
// command uses this internally; the analyze command stops here and
// just reports.
func Analyze(ctx context.Context, c *Context) ([]FrameRecord, error) {
	return c.analyzeFrames(ctx)
}

// analyzeFrames runs the per-frame analysis pass on a worker pool:
// read, calibrate, find centroid, score sharpness. Frames are
// independent here; order of completion doesn't matter.
func (c *Context)analyzeFrames(ctx context.Context) ([]FrameRecord, error) {
	n := c.Lights.Count()
	records := make([]FrameRecord, n)

	var wg sync.WaitGroup
	jobsChan := make(chan int, n)

	nWorkers := workerCount(c.Config, c.Lights.Geometry().Width, c.Lights.Geometry().Height)
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobsChan {
				if ctx.Err() != nil {
					continue // drain; cancellation checked at frame boundaries
				}
				records[idx] = c.analyzeOne(idx)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobsChan <- i
	}
	close(jobsChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Context)analyzeOne(idx int) FrameRecord {
	rec := FrameRecord{Index: idx}

	raw, err := c.Lights.Frame(idx)
	if err != nil {
		rec.Err = err
		return rec
	}
	rec.Timestamp = raw.Timestamp

	cal, err := c.Applier.Apply(raw)
	if err != nil {
		rec.Err = err
		return rec
	}

	cent, err := align.FindCentroid(cal.Grid, c.Config.DetectionThreshold)
	if err != nil {
		rec.Err = err
		if c.Config.Verbosity > 0 {
			log.Printf("Frame %d excluded: %v", idx, err)
		}
		return rec
	}
	rec.Centroid = cent
	rec.Sigma = quality.Sigma(cal.Grid, int(cent.X), int(cent.Y), c.Config.AnalysisWindow)

	if c.Config.Verbosity > 1 {
		log.Printf("Frame %d: sigma %.5f, %s", idx, rec.Sigma, cent)
	}
	if c.Config.Verbosity > 2 {
		log.Printf("Frame %d pixel distribution: %s", idx, cal.DistributionString())
	}
	return rec
}

// stackFrames is the fan-out/fan-in reduction: workers each own a
// private accumulator and deposit their share of frames into it; the
// partial accumulators merge into one under a mutex at the end. The
// master accumulator is the only mutably-shared state in the run.
func (c *Context)stackFrames(ctx context.Context, records []FrameRecord, kept []quality.Scored, ref FrameRecord, refAngle float64) (*drizzle.Accumulator, int, error) {
	geom := c.Lights.Geometry()
	master := drizzle.NewAccumulator(geom.Width, geom.Height, c.Config.Scale)

	var mu sync.Mutex
	var wg sync.WaitGroup
	var limbFailures int
	jobsChan := make(chan FrameRecord, len(kept))

	nWorkers := workerCount(c.Config, geom.Width, geom.Height)
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc := drizzle.NewAccumulator(geom.Width, geom.Height, c.Config.Scale)
			failures := 0

			for rec := range jobsChan {
				if ctx.Err() != nil {
					continue
				}
				if err := c.stackOne(rec, ref, refAngle, acc); err != nil {
					if errors.Is(err, limb.ErrLimbModelFit) {
						failures++
						continue
					}
					log.Printf("Frame %d failed during stacking: %v", rec.Index, err)
					continue
				}
			}

			mu.Lock()
			if err := master.Merge(acc); err != nil {
				log.Printf("Dropping a worker's partial stack: %v", err)
			}
			limbFailures += failures
			mu.Unlock()
		}()
	}

	for _, s := range kept {
		jobsChan <- records[s.Index]
	}
	close(jobsChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if master.Frames == 0 {
		return nil, 0, fmt.Errorf("%w: every surviving frame failed during stacking", ErrNoFramesAligned)
	}
	return master, limbFailures, nil
}

func (c *Context)stackOne(rec FrameRecord, ref FrameRecord, refAngle float64, acc *drizzle.Accumulator) error {
	raw, err := c.Lights.Frame(rec.Index)
	if err != nil {
		return err
	}
	cal, err := c.Applier.Apply(raw)
	if err != nil {
		return err
	}

	g := cal.Grid
	if c.Config.Limb == LimbPreStack {
		corrected, err := correctLimb(c.Config, g, rec.Centroid.X, rec.Centroid.Y, rec.Centroid.DiskRadius)
		if err != nil {
			// Stack the uncorrected frame; the failure is tallied, not fatal.
			log.Printf("Frame %d: limb correction skipped: %v", rec.Index, err)
			acc.AddFrame(g, frameTransform(rec, ref, refAngle, c.Config.Scale), c.Config.Drop)
			return fmt.Errorf("%w: frame %d", limb.ErrLimbModelFit, rec.Index)
		}
		g = corrected
	}

	acc.AddFrame(g, frameTransform(rec, ref, refAngle, c.Config.Scale), c.Config.Drop)
	return nil
}

// frameTransform builds the source->canvas affine for one frame:
// centroid translation, derotation about the reference centroid by
// the angle accumulated since the reference frame, drizzle scale.
func frameTransform(rec, ref FrameRecord, refAngle float64, scale drizzle.Scale) smath.Aff3 {
	return drizzle.FrameTransform(
		ref.Centroid.X-rec.Centroid.X,
		ref.Centroid.Y-rec.Centroid.Y,
		rec.Rotation-refAngle,
		ref.Centroid.X, ref.Centroid.Y,
		scale)
}

func correctLimb(cfg Config, g *frame.Grid, cx, cy, radius float64) (*frame.Grid, error) {
	var model *limb.Model
	if cfg.LimbCoefficient > 0 {
		if radius < 1 {
			return nil, fmt.Errorf("%w: disk radius %.1f", limb.ErrLimbModelFit, radius)
		}
		model = limb.CosineLaw(cfg.LimbCoefficient, radius)
	} else {
		var err error
		if model, err = limb.FitProfile(g, cx, cy, radius); err != nil {
			return nil, err
		}
	}
	return limb.Correct(g, cx, cy, model), nil
}
