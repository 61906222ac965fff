package stack

import(
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"golang.org/x/image/tiff"

	"sunstack/pkg/frame"
)

// toGray16 normalizes the stacked grid to a 16-bit grayscale image,
// scaling so the brightest pixel hits full scale. The stack itself
// stays linear; this is just quantization for the output file.
func toGray16(g *frame.Grid) *image.Gray16 {
	_, max := g.MinMax()
	scale := 1.0
	if max > 0 {
		scale = 1.0 / max
	}

	img := image.NewGray16(image.Rect(0, 0, g.Dx(), g.Dy()))
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			v := g.Get(x, y) * scale
			if v < 0 { v = 0 }
			if v > 1 { v = 1 }
			img.SetGray16(x, y, color.Gray16{Y: uint16(v*65535.0 + 0.5)})
		}
	}
	return img
}

func WritePNG(g *frame.Grid, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return png.Encode(writer, toGray16(g))
	}
}

func WriteTIFF(g *frame.Grid, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return tiff.Encode(writer, toGray16(g), &tiff.Options{Compression: tiff.Deflate})
	}
}

// hdrGray wraps a grid as an hdr.Image so the linear, unquantized
// stack can go out as Radiance RGBE for HDR-aware tools.
type hdrGray struct {
	g *frame.Grid
}

func (h hdrGray)ColorModel() color.Model { return hdrcolor.RGBModel }
func (h hdrGray)Bounds() image.Rectangle { return image.Rect(0, 0, h.g.Dx(), h.g.Dy()) }
func (h hdrGray)At(x, y int) color.Color { return h.HDRAt(x, y) }
func (h hdrGray)Size() int               { return h.g.Dx() * h.g.Dy() }

func (h hdrGray)HDRAt(x, y int) hdrcolor.Color {
	v := h.g.Get(x, y)
	if v < 0 {
		v = 0
	}
	return hdrcolor.RGB{R: v, G: v, B: v}
}

// WriteHDR outputs the linear stack as a Radiance file. You can load
// this into HDR-aware tools without losing the unquantized range.
func WriteHDR(g *frame.Grid, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return rgbe.Encode(writer, hdrGray{g})
	}
}

// SaveResult writes the stacked image in the configured formats plus
// the provenance sidecar.
func SaveResult(cfg Config, res *Result) error {
	if err := WritePNG(res.Image, cfg.Output); err != nil {
		return err
	}

	base := strings.TrimSuffix(cfg.Output, filepath.Ext(cfg.Output))
	if cfg.WriteTIFF {
		if err := WriteTIFF(res.Image, base+".tif"); err != nil {
			return err
		}
	}
	if cfg.WriteHDR {
		if err := WriteHDR(res.Image, base+".hdr"); err != nil {
			return err
		}
	}
	return res.Provenance.Save(base + ".provenance.yaml")
}
