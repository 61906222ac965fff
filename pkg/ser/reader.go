package ser

import(
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"sunstack/pkg/frame"
)

// A Reader gives random access to the frames of a SER file, so the
// pipeline can make multiple passes (calibration, analysis, stacking)
// without holding every frame in memory.
type Reader struct {
	Header     Header

	f          *os.File
	geom       frame.Geometry
	timestamps []time.Time // one per frame; from the trailer, or interpolated
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ser open '%s': %v", path, err)
	}

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("ser read header '%s': %w", path, ErrFormat)
	}

	hdr, err := parseHeader(buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ser '%s': %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ser stat '%s': %v", path, err)
	}

	dataEnd := headerSize + hdr.frameBytes()*int64(hdr.FrameCount)
	if fi.Size() < dataEnd {
		f.Close()
		return nil, fmt.Errorf("ser '%s': %w: have %d bytes, frame data ends at %d",
			path, ErrTruncated, fi.Size(), dataEnd)
	}

	r := &Reader{Header: hdr, f: f, geom: hdr.Geometry()}
	if err := r.loadTimestamps(fi.Size(), dataEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("ser '%s': %w", path, err)
	}

	return r, nil
}

func (r *Reader)Close() error       { return r.f.Close() }
func (r *Reader)Count() int         { return int(r.Header.FrameCount) }
func (r *Reader)Geometry() frame.Geometry { return r.geom }

// loadTimestamps reads the trailer of per-frame UTC times. Files
// written without a trailer get times interpolated from the header's
// capture start, spaced by a nominal interval; rotation only cares
// about times spanning seconds-to-minutes, so a missing trailer on an
// alt-az run is worth a warning but not a failure here.
func (r *Reader)loadTimestamps(fileSize, dataEnd int64) error {
	n := int(r.Header.FrameCount)
	r.timestamps = make([]time.Time, n)

	trailerSize := int64(8 * n)
	if fileSize >= dataEnd+trailerSize && n > 0 {
		buf := make([]byte, trailerSize)
		if _, err := r.f.ReadAt(buf, dataEnd); err != nil {
			return fmt.Errorf("%w: timestamp trailer: %v", ErrTruncated, err)
		}
		for i := 0; i < n; i++ {
			ticks := int64(binary.LittleEndian.Uint64(buf[i*8 : i*8+8]))
			r.timestamps[i] = ticksToTime(ticks)
		}
		return nil
	}

	// No complete trailer (absent, or cut short by truncation). Space
	// frames at a nominal 30fps from the header start time; field
	// derotation on an alt-az run will be working from synthetic times.
	if n > 0 {
		log.Printf("SER file has no complete timestamp trailer; interpolating frame times at 30fps")
	}
	start := ticksToTime(r.Header.DateTimeUTC)
	for i := 0; i < n; i++ {
		r.timestamps[i] = start.Add(time.Duration(i) * time.Second / 30)
	}
	return nil
}

func (r *Reader)HasTrailer() bool {
	fi, err := r.f.Stat()
	if err != nil {
		return false
	}
	return fi.Size() >= headerSize+r.Header.frameBytes()*int64(r.Header.FrameCount)+int64(8*r.Header.FrameCount)
}

func (r *Reader)Timestamp(i int) time.Time { return r.timestamps[i] }

// Frame decodes frame i. Samples are normalized to [0,1]; Bayer
// mosaics are flattened to a luminance plane.
func (r *Reader)Frame(i int) (*frame.Frame, error) {
	if i < 0 || i >= r.Count() {
		return nil, fmt.Errorf("ser frame %d out of range [0,%d)", i, r.Count())
	}

	nBytes := r.Header.frameBytes()
	buf := make([]byte, nBytes)
	off := headerSize + nBytes*int64(i)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("ser frame %d: %w: %v", i, ErrTruncated, err)
	}

	g := r.decodePixels(buf)
	g = frame.DebayerLuminance(g, r.Header.ColorID)

	return &frame.Frame{
		Grid:      g,
		Geometry:  r.geom,
		Timestamp: r.timestamps[i],
		Index:     i,
	}, nil
}

func (r *Reader)decodePixels(buf []byte) *frame.Grid {
	w, h := int(r.Header.Width), int(r.Header.Height)
	planes := r.Header.ColorID.Planes()
	values := make([]float64, w*h)

	if r.Header.PixelDepth <= 8 {
		for p := 0; p < w*h; p++ {
			sum := 0.0
			for c := 0; c < planes; c++ {
				sum += float64(buf[p*planes+c])
			}
			values[p] = sum / float64(planes) / 255.0
		}
		return frame.NewGridFromValues(w, values)
	}

	var order binary.ByteOrder = binary.BigEndian
	if r.Header.LittleEndian != 0 {
		order = binary.LittleEndian
	}
	for p := 0; p < w*h; p++ {
		sum := 0.0
		for c := 0; c < planes; c++ {
			off := (p*planes + c) * 2
			sum += float64(order.Uint16(buf[off : off+2]))
		}
		values[p] = sum / float64(planes) / 65535.0
	}
	return frame.NewGridFromValues(w, values)
}

// ReadAll is a convenience for small sequences (calibration frames):
// it decodes every frame up front.
func ReadAll(path string) ([]*frame.Frame, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	frames := make([]*frame.Frame, 0, r.Count())
	for i := 0; i < r.Count(); i++ {
		f, err := r.Frame(i)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}
