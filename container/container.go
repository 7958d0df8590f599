/*
Package container implements the bitstream layout shared byte for byte
between the encoder output and the on-device player.

The layout is a fixed header of nine little-endian 32-bit words, a frame
offset table of frameCount+1 words, an optional shared color map and the
concatenated per-frame payloads. Offsets are relative to the start of the
frame data region, non-decreasing and word aligned; the final entry is the
total length of the region so the size of frame i is always
offset[i+1]-offset[i]. When the frames do not share a single color map each
payload is prefixed by its own word-padded color map instead.

Everything is padded to a multiple of 4 bytes so the device can treat the
whole blob as an array of 32-bit words.
*/
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bodgit/gbavid/frame"
)

// Stage flags recorded in the header. The player undoes the flagged stages
// in reverse canonical order.
const (
	FlagTiles uint32 = 1 << iota
	FlagSprites
	FlagDeltaImage
	FlagDXT1
	FlagDelta8
	FlagDelta16
	FlagRLE
	FlagLZ10
	FlagLZ11
	FlagSharedPalette
)

// The sprite geometry rides in the upper flag bits, in units of tiles, so
// the fixed nine-word header needs no extra fields for sprite mode.
const (
	spriteWidthShift  = 16
	spriteHeightShift = 24
	spriteMask        = 0xff
)

// FlagsWithSpriteSize records a sprite geometry of w by h pixels in the
// upper bits of flags.
func FlagsWithSpriteSize(flags uint32, w, h int) uint32 {
	return flags | uint32(w/8)<<spriteWidthShift | uint32(h/8)<<spriteHeightShift
}

// SpriteSize extracts the sprite geometry in pixels from flags.
func SpriteSize(flags uint32) (w, h int) {
	return int(flags>>spriteWidthShift&spriteMask) * 8, int(flags>>spriteHeightShift&spriteMask) * 8
}

const (
	headerWords = 9
	// HeaderSize is the byte length of the fixed header.
	HeaderSize = headerWords * 4

	wordSize = 4
)

var (
	ErrTruncated   = errors.New("container: truncated stream")
	ErrBadOffsets  = errors.New("container: bad frame offset table")
	ErrFrameBounds = errors.New("container: frame index out of range")
)

// Header is the device-visible description of the stream.
type Header struct {
	FrameCount      uint32
	FPS             uint32
	Width           uint32
	Height          uint32
	BitsPerPixel    uint32
	ColorMapEntries uint32
	BitsPerColor    uint32
	MaxMemoryNeeded uint32
	Flags           uint32
}

func pad(n int) int {
	return (n + wordSize - 1) &^ (wordSize - 1)
}

type streamFrame struct {
	data    []byte
	palette []uint16
	scratch uint32
}

// Stream assembles a bitstream. It is append-only: add every frame in
// order, then marshal once.
type Stream struct {
	width, height, fps uint32
	format             frame.ColorFormat
	flags              uint32
	frames             []streamFrame
}

// NewStream starts an empty bitstream for frames of the given geometry,
// format and stage flags.
func NewStream(width, height, fps uint32, f frame.ColorFormat, flags uint32) *Stream {
	return &Stream{
		width:  width,
		height: height,
		fps:    fps,
		format: f,
		flags:  flags,
	}
}

// AddFrame appends one compressed frame. data must already be word padded;
// scratch is the frame's decode working-set bound as recorded by the
// pipeline.
func (s *Stream) AddFrame(data []byte, palette []uint16, scratch uint32) error {
	if len(data)%wordSize != 0 {
		return errors.New("container: frame data not word padded")
	}
	if len(s.frames) > 0 && len(palette) != len(s.frames[0].palette) {
		return errors.New("container: color map size changed mid-stream")
	}
	s.frames = append(s.frames, streamFrame{data: data, palette: palette, scratch: scratch})
	return nil
}

// FrameCount returns the number of frames added so far.
func (s *Stream) FrameCount() int {
	return len(s.frames)
}

func (s *Stream) sharedPalette() bool {
	for _, f := range s.frames[1:] {
		if len(f.palette) != len(s.frames[0].palette) {
			return false
		}
		for i, c := range f.palette {
			if c != s.frames[0].palette[i] {
				return false
			}
		}
	}
	return true
}

func writePalette(b *bytes.Buffer, palette []uint16) {
	for _, c := range palette {
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], c)
		b.Write(tmp[:])
	}
	for i := len(palette) * 2; i%wordSize != 0; i++ {
		b.WriteByte(0)
	}
}

// MarshalBinary encodes the stream into its wire form.
func (s *Stream) MarshalBinary() ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, errors.New("container: no frames")
	}

	bpp, err := s.format.BitsPerPixel()
	if err != nil {
		return nil, err
	}

	h := Header{
		FrameCount:   uint32(len(s.frames)),
		FPS:          s.fps,
		Width:        s.width,
		Height:       s.height,
		BitsPerPixel: uint32(bpp),
		Flags:        s.flags,
	}
	if n := len(s.frames[0].palette); n > 0 {
		h.ColorMapEntries = uint32(n)
		h.BitsPerColor = 15
	}

	shared := h.ColorMapEntries == 0 || s.sharedPalette()
	if shared {
		h.Flags |= FlagSharedPalette
	}

	offsets := make([]uint32, 0, len(s.frames)+1)
	var off uint32
	for _, f := range s.frames {
		offsets = append(offsets, off)
		if !shared {
			off += uint32(pad(len(f.palette) * 2))
		}
		off += uint32(len(f.data))
		if f.scratch > h.MaxMemoryNeeded {
			h.MaxMemoryNeeded = f.scratch
		}
	}
	offsets = append(offsets, off)

	b := new(bytes.Buffer)
	for _, w := range []uint32{
		h.FrameCount, h.FPS, h.Width, h.Height, h.BitsPerPixel,
		h.ColorMapEntries, h.BitsPerColor, h.MaxMemoryNeeded, h.Flags,
	} {
		if err := binary.Write(b, binary.LittleEndian, w); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(b, binary.LittleEndian, offsets); err != nil {
		return nil, err
	}
	if shared && h.ColorMapEntries > 0 {
		writePalette(b, s.frames[0].palette)
	}
	for _, f := range s.frames {
		if !shared {
			writePalette(b, f.palette)
		}
		b.Write(f.data)
	}

	return b.Bytes(), nil
}

// Reader provides random access into a marshalled bitstream without
// copying. The player keeps exactly one for the lifetime of a stream.
type Reader struct {
	header  Header
	offsets []byte // raw offset table
	palette []byte // shared color map, nil if per-frame
	data    []byte // frame data region
}

// NewReader parses the header and offset table of a marshalled bitstream.
func NewReader(b []byte) (*Reader, error) {
	if len(b) < HeaderSize {
		return nil, ErrTruncated
	}

	var h Header
	h.FrameCount = binary.LittleEndian.Uint32(b)
	h.FPS = binary.LittleEndian.Uint32(b[4:])
	h.Width = binary.LittleEndian.Uint32(b[8:])
	h.Height = binary.LittleEndian.Uint32(b[12:])
	h.BitsPerPixel = binary.LittleEndian.Uint32(b[16:])
	h.ColorMapEntries = binary.LittleEndian.Uint32(b[20:])
	h.BitsPerColor = binary.LittleEndian.Uint32(b[24:])
	h.MaxMemoryNeeded = binary.LittleEndian.Uint32(b[28:])
	h.Flags = binary.LittleEndian.Uint32(b[32:])

	if h.FrameCount == 0 {
		return nil, errors.New("container: empty stream")
	}

	r := &Reader{header: h}
	rest := b[HeaderSize:]

	tableSize := int(h.FrameCount+1) * 4
	if len(rest) < tableSize {
		return nil, ErrTruncated
	}
	r.offsets = rest[:tableSize]
	rest = rest[tableSize:]

	if h.Flags&FlagSharedPalette != 0 && h.ColorMapEntries > 0 {
		n := pad(int(h.ColorMapEntries) * 2)
		if len(rest) < n {
			return nil, ErrTruncated
		}
		r.palette = rest[:int(h.ColorMapEntries)*2]
		rest = rest[n:]
	}

	total := r.offset(int(h.FrameCount))
	if int(total) > len(rest) {
		return nil, ErrTruncated
	}
	r.data = rest[:total]

	var prev uint32
	for i := 0; i <= int(h.FrameCount); i++ {
		o := r.offset(i)
		if o < prev || o%wordSize != 0 {
			return nil, ErrBadOffsets
		}
		prev = o
	}

	return r, nil
}

// Header returns the parsed stream header.
func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) offset(i int) uint32 {
	return binary.LittleEndian.Uint32(r.offsets[i*4:])
}

// Frame returns the payload and color map bytes of frame i. The color map
// is the shared one when present, otherwise the frame's own prefix. Both
// slices alias the stream; neither is copied.
func (r *Reader) Frame(i int) (payload, palette []byte, err error) {
	if i < 0 || i >= int(r.header.FrameCount) {
		return nil, nil, ErrFrameBounds
	}
	b := r.data[r.offset(i):r.offset(i+1)]
	if r.header.Flags&FlagSharedPalette != 0 {
		return b, r.palette, nil
	}
	n := int(r.header.ColorMapEntries) * 2
	if len(b) < pad(n) {
		return nil, nil, fmt.Errorf("container: frame %d shorter than its color map", i)
	}
	return b[pad(n):], b[:n], nil
}
