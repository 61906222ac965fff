package main

import(
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"sunstack/pkg/align"
	"sunstack/pkg/stack"
)

// The threshold test renders the first light frame with every pixel
// above the detection threshold tinted, so you can eyeball whether
// the configured threshold separates disk from sky before committing
// to a long run.
func newThreshTestCommand() *cobra.Command {
	cfg := stack.NewConfig()
	var configPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "threshtest",
		Short: "Visualize the object detection threshold on the first frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, configPath); err != nil {
				return err
			}

			c, err := stack.NewContext(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			raw, err := c.Lights.Frame(0)
			if err != nil {
				return err
			}
			cal, err := c.Applier.Apply(raw)
			if err != nil {
				return err
			}

			cent, centErr := align.FindCentroid(cal.Grid, cfg.DetectionThreshold)
			threshold := cfg.DetectionThreshold
			if threshold <= 0 {
				if centErr == nil {
					threshold = cent.Threshold
				} else {
					threshold = cal.Percentile(0.75)
				}
			}

			g := cal.Grid
			_, max := g.MinMax()
			if max <= 0 {
				max = 1
			}

			// Below threshold stays gray; above runs a warm hue ramp by
			// intensity so saturated regions stand apart from barely-over.
			img := image.NewRGBA(image.Rect(0, 0, g.Dx(), g.Dy()))
			for y := 0; y < g.Dy(); y++ {
				for x := 0; x < g.Dx(); x++ {
					v := g.Get(x, y) / max
					if v < 0 {
						v = 0
					}
					if g.Get(x, y) > threshold {
						c := colorful.Hsv(60-60*v, 1.0, 0.4+0.6*v)
						r, gc, b := c.RGB255()
						img.Set(x, y, color.RGBA{r, gc, b, 0xff})
					} else {
						gray := uint8(v * 255)
						img.Set(x, y, color.RGBA{gray, gray, gray, 0xff})
					}
				}
			}

			dc := gg.NewContextForImage(img)
			dc.SetRGB(1, 1, 1)
			dc.DrawString(fmt.Sprintf("threshold %.4f", threshold), 20, 30)
			if centErr == nil {
				dc.DrawCircle(cent.X, cent.Y, 6)
				dc.Stroke()
				dc.DrawString(fmt.Sprintf("centroid (%.1f, %.1f)", cent.X, cent.Y), 20, 50)
			} else {
				dc.DrawString(fmt.Sprintf("no centroid: %v", centErr), 20, 50)
			}

			if err := dc.SavePNG(outPath); err != nil {
				return fmt.Errorf("threshtest write '%s': %v", outPath, err)
			}
			fmt.Println("Wrote", outPath)
			return nil
		},
	}

	configFlags(cmd, &cfg, &configPath)
	cmd.Flags().StringVar(&outPath, "out", "threshtest.png", "output image path")
	return cmd
}
