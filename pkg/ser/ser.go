// Package ser reads and writes SER frame-sequence containers, the
// video-ish capture format used by planetary/solar imaging tools. A
// file is a fixed 178-byte header, then N raw frames, then (usually)
// a trailer of per-frame UTC timestamps.
package ser

import(
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"sunstack/pkg/frame"
)

var(
	ErrFormat            = errors.New("malformed SER container")
	ErrGeometryMismatch  = errors.New("frame geometry mismatch")
	ErrTruncated         = errors.New("truncated frame data")
)

const(
	headerSize = 178
	fileID     = "LUCAM-RECORDER"

	// .NET ticks are 100ns intervals since 0001-01-01; this many had
	// elapsed at the unix epoch.
	epochTicks = 621355968000000000
)

// Header is the fixed SER v3 file header.
type Header struct {
	FileID       string
	LuID         int32
	ColorID      frame.ColorID
	LittleEndian int32  // 16-bit sample byte order; nonzero means little-endian
	Width        int32
	Height       int32
	PixelDepth   int32  // bits per sample plane, 1..16
	FrameCount   int32
	Observer     string
	Instrument   string
	Telescope    string
	DateTime     int64  // local capture start, .NET ticks
	DateTimeUTC  int64  // UTC capture start, .NET ticks
}

func (h Header)Geometry() frame.Geometry {
	depth := 8
	if h.PixelDepth > 8 {
		depth = 16
	}
	return frame.Geometry{
		Width:    int(h.Width),
		Height:   int(h.Height),
		BitDepth: depth,
		Color:    h.ColorID,
	}
}

// frameBytes is the on-disk size of one frame.
func (h Header)frameBytes() int64 {
	bytesPerSample := int64(1)
	if h.PixelDepth > 8 {
		bytesPerSample = 2
	}
	return int64(h.Width) * int64(h.Height) * int64(h.ColorID.Planes()) * bytesPerSample
}

func (h Header)String() string {
	return fmt.Sprintf("SER[%s, %d frames, %s]", h.Instrument, h.FrameCount, h.Geometry())
}

func ticksToTime(ticks int64) time.Time {
	return time.Unix(0, (ticks-epochTicks)*100).UTC()
}

func timeToTicks(t time.Time) int64 {
	return t.UTC().UnixNano()/100 + epochTicks
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrFormat, len(buf), headerSize)
	}
	if string(buf[0:14]) != fileID {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrFormat, string(buf[0:14]))
	}

	le := binary.LittleEndian // header fields are always little-endian
	h := Header{
		FileID:       fileID,
		LuID:         int32(le.Uint32(buf[14:18])),
		ColorID:      frame.ColorID(le.Uint32(buf[18:22])),
		LittleEndian: int32(le.Uint32(buf[22:26])),
		Width:        int32(le.Uint32(buf[26:30])),
		Height:       int32(le.Uint32(buf[30:34])),
		PixelDepth:   int32(le.Uint32(buf[34:38])),
		FrameCount:   int32(le.Uint32(buf[38:42])),
		Observer:     trimPadding(buf[42:82]),
		Instrument:   trimPadding(buf[82:122]),
		Telescope:    trimPadding(buf[122:162]),
		DateTime:     int64(le.Uint64(buf[162:170])),
		DateTimeUTC:  int64(le.Uint64(buf[170:178])),
	}

	switch {
	case h.Width <= 0 || h.Height <= 0:
		return h, fmt.Errorf("%w: image dimensions %dx%d", ErrFormat, h.Width, h.Height)
	case h.PixelDepth < 1 || h.PixelDepth > 16:
		return h, fmt.Errorf("%w: pixel depth %d", ErrFormat, h.PixelDepth)
	case h.FrameCount < 0:
		return h, fmt.Errorf("%w: frame count %d", ErrFormat, h.FrameCount)
	}

	switch h.ColorID {
	case frame.ColorMono, frame.ColorBayerRGGB, frame.ColorBayerGRBG,
		frame.ColorBayerGBRG, frame.ColorBayerBGGR, frame.ColorRGB, frame.ColorBGR:
	default:
		return h, fmt.Errorf("%w: unknown color ID %d", ErrFormat, h.ColorID)
	}

	return h, nil
}

func trimPadding(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}
