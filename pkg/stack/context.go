package stack

import(
	"context"
	"errors"
	"fmt"
	"log"

	"sunstack/pkg/calib"
	"sunstack/pkg/ser"
)

var ErrNoLightFrames = errors.New("light sequence contains no frames")

// A Context is everything a stacking run needs, built up front so the
// run itself fails fast on structural problems: the open light
// reader, the master calibration frames, and the calibration applier.
// Masters and applier are read-only once built; the reader's random
// access is safe for concurrent use.
type Context struct {
	Config  Config
	Lights  *ser.Reader
	Masters calib.Masters
	Applier *calib.Applier
}

// NewContext opens the light sequence and builds whichever masters
// the config names. Master order follows the processing convention:
// flat, darkflat, dark, bias. Cancellation is checked between
// masters, not inside them.
func NewContext(ctx context.Context, cfg Config) (*Context, error) {
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	lights, err := ser.Open(cfg.Light)
	if err != nil {
		return nil, err
	}
	if lights.Count() == 0 {
		lights.Close()
		return nil, fmt.Errorf("%w: '%s'", ErrNoLightFrames, cfg.Light)
	}
	log.Printf("Light sequence: %s", lights.Header)

	c := &Context{Config: cfg, Lights: lights}

	builds := []struct {
		path string
		kind calib.Kind
		dst  **calib.Master
	}{
		{cfg.Flat, calib.Flat, &c.Masters.Flat},
		{cfg.DarkFlat, calib.DarkFlat, &c.Masters.DarkFlat},
		{cfg.Dark, calib.Dark, &c.Masters.Dark},
		{cfg.Bias, calib.Bias, &c.Masters.Bias},
	}
	for _, b := range builds {
		if b.path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			lights.Close()
			return nil, err
		}

		frames, err := ser.ReadAll(b.path)
		if err != nil {
			lights.Close()
			return nil, fmt.Errorf("%s sequence: %w", b.kind, err)
		}
		m, err := calib.BuildMaster(frames, b.kind, cfg.SigmaClipMasters)
		if err != nil {
			lights.Close()
			return nil, err
		}
		*b.dst = m
	}

	var hot *calib.HotPixelMap
	if cfg.HotPixelMap != "" {
		if hot, err = calib.LoadHotPixelMap(cfg.HotPixelMap); err != nil {
			lights.Close()
			return nil, err
		}
		log.Printf("Hot pixel map: %d flagged pixels", len(hot.Pixels))
	}

	applier, err := calib.NewApplier(c.Masters, hot, lights.Geometry())
	if err != nil {
		lights.Close()
		return nil, err
	}
	c.Applier = applier

	return c, nil
}

func (c *Context)Close() error {
	return c.Lights.Close()
}
