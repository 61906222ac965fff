package ser

import(
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"sunstack/pkg/frame"
)

// A Writer builds a SER file one frame at a time, collecting the
// timestamp trailer as it goes. Used for synthesizing test sequences
// and for exporting calibrated frame runs.
type Writer struct {
	f          *os.File
	hdr        Header
	geom       frame.Geometry
	count      int32
	timestamps []int64
}

// NewWriter creates a SER writer for 16-bit little-endian samples of
// the given geometry.
func NewWriter(path string, geom frame.Geometry, instrument string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ser create '%s': %v", path, err)
	}

	w := &Writer{
		f:    f,
		geom: geom,
		hdr: Header{
			FileID:       fileID,
			ColorID:      geom.Color,
			LittleEndian: 1,
			Width:        int32(geom.Width),
			Height:       int32(geom.Height),
			PixelDepth:   int32(geom.BitDepth),
			Instrument:   instrument,
		},
	}

	// Header is rewritten with the final frame count on Close; write a
	// placeholder now so frame data lands at the right offset. The
	// WriteAt doesn't move the file offset, so seek past the header
	// before the sequential frame writes start.
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(headerSize, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("ser seek past header: %v", err)
	}
	return w, nil
}

func (w *Writer)writeHeader() error {
	buf := make([]byte, headerSize)
	copy(buf[0:14], fileID)
	le := binary.LittleEndian
	le.PutUint32(buf[14:18], uint32(w.hdr.LuID))
	le.PutUint32(buf[18:22], uint32(w.hdr.ColorID))
	le.PutUint32(buf[22:26], uint32(w.hdr.LittleEndian))
	le.PutUint32(buf[26:30], uint32(w.hdr.Width))
	le.PutUint32(buf[30:34], uint32(w.hdr.Height))
	le.PutUint32(buf[34:38], uint32(w.hdr.PixelDepth))
	le.PutUint32(buf[38:42], uint32(w.count))
	copy(buf[42:82], w.hdr.Observer)
	copy(buf[82:122], w.hdr.Instrument)
	copy(buf[122:162], w.hdr.Telescope)
	le.PutUint64(buf[162:170], uint64(w.hdr.DateTime))
	le.PutUint64(buf[170:178], uint64(w.hdr.DateTimeUTC))

	if _, err := w.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("ser write header: %v", err)
	}
	return nil
}

// Append writes one frame. The grid values are clamped to [0,1] and
// quantized to the writer's bit depth.
func (w *Writer)Append(g *frame.Grid, ts time.Time) error {
	if g.Dx() != w.geom.Width || g.Dy() != w.geom.Height {
		return fmt.Errorf("ser append: %w: frame %dx%d, file %dx%d",
			ErrGeometryMismatch, g.Dx(), g.Dy(), w.geom.Width, w.geom.Height)
	}

	if w.count == 0 {
		w.hdr.DateTimeUTC = timeToTicks(ts)
		w.hdr.DateTime = w.hdr.DateTimeUTC
	}

	values := g.Values()
	var buf []byte
	if w.geom.BitDepth <= 8 {
		buf = make([]byte, len(values))
		for i, v := range values {
			buf[i] = uint8(clamp01(v)*255.0 + 0.5)
		}
	} else {
		buf = make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(clamp01(v)*65535.0+0.5))
		}
	}

	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("ser append frame %d: %v", w.count, err)
	}

	w.count++
	w.timestamps = append(w.timestamps, timeToTicks(ts))
	return nil
}

// Close writes the timestamp trailer and the finalized header.
func (w *Writer)Close() error {
	buf := make([]byte, 8*len(w.timestamps))
	for i, ticks := range w.timestamps {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], uint64(ticks))
	}
	if _, err := w.f.Write(buf); err != nil {
		w.f.Close()
		return fmt.Errorf("ser write trailer: %v", err)
	}

	if err := w.writeHeader(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

func clamp01(v float64) float64 {
	if v < 0 { return 0 }
	if v > 1 { return 1 }
	return v
}
