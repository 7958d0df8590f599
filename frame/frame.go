/*
Package frame defines the pixel formats understood by the converter and the
in-memory representation of a single frame as it moves through the
processing pipeline.

Paletted pixel data is stored packed at the format bit depth, exactly as it
will be laid out in the output bitstream. Direct color pixel data is stored
as little-endian 16-bit values for RGB555/RGB565 and as 3 bytes per pixel
for RGB888. Palettes are always stored as 15-bit RGB555 entries.
*/
package frame

import (
	"errors"
	"fmt"
)

// ColorFormat is the closed set of pixel encodings supported by the target.
type ColorFormat int

const (
	Paletted1 ColorFormat = iota + 1
	Paletted2
	Paletted4
	Paletted8
	RGB555
	RGB565
	RGB888
)

// ErrBadFormat is returned for any ColorFormat outside the declared set.
var ErrBadFormat = errors.New("frame: bad color format")

// BitsPerPixel returns the bit width of the format.
func (f ColorFormat) BitsPerPixel() (int, error) {
	switch f {
	case Paletted1:
		return 1, nil
	case Paletted2:
		return 2, nil
	case Paletted4:
		return 4, nil
	case Paletted8:
		return 8, nil
	case RGB555:
		return 15, nil
	case RGB565:
		return 16, nil
	case RGB888:
		return 24, nil
	}
	return 0, ErrBadFormat
}

// Paletted reports whether the format carries a color map.
func (f ColorFormat) Paletted() bool {
	switch f {
	case Paletted1, Paletted2, Paletted4, Paletted8:
		return true
	}
	return false
}

func (f ColorFormat) String() string {
	switch f {
	case Paletted1:
		return "paletted 1-bit"
	case Paletted2:
		return "paletted 2-bit"
	case Paletted4:
		return "paletted 4-bit"
	case Paletted8:
		return "paletted 8-bit"
	case RGB555:
		return "RGB555"
	case RGB565:
		return "RGB565"
	case RGB888:
		return "RGB888"
	}
	return "unknown"
}

// PalettedFormat returns the narrowest paletted format able to hold the
// given number of colors.
func PalettedFormat(colors int) (ColorFormat, error) {
	switch {
	case colors <= 0 || colors > 256:
		return 0, fmt.Errorf("frame: %d colors out of range", colors)
	case colors <= 2:
		return Paletted1, nil
	case colors <= 4:
		return Paletted2, nil
	case colors <= 16:
		return Paletted4, nil
	}
	return Paletted8, nil
}

// Buffer is one frame in flight through the pipeline. Ownership moves from
// stage to stage; a stage must not retain a Buffer after handing it on.
type Buffer struct {
	Pixels  []byte
	Palette []uint16
	Format  ColorFormat
	Width   int
	Height  int
}

// StorageSize returns the packed byte length of w*h pixels in format f.
func StorageSize(f ColorFormat, w, h int) (int, error) {
	bpp, err := f.BitsPerPixel()
	if err != nil {
		return 0, err
	}
	switch f {
	case RGB555, RGB565:
		return w * h * 2, nil
	case RGB888:
		return w * h * 3, nil
	}
	return (w*h*bpp + 7) / 8, nil
}

// Indices unpacks the paletted pixel payload to one index per byte.
func (b *Buffer) Indices() ([]byte, error) {
	if !b.Format.Paletted() {
		return nil, ErrBadFormat
	}
	bpp, _ := b.Format.BitsPerPixel()
	n := b.Width * b.Height
	out := make([]byte, n)
	mask := byte(1<<bpp - 1)
	for i := 0; i < n; i++ {
		bit := i * bpp
		out[i] = b.Pixels[bit>>3] >> (bit & 7) & mask
	}
	return out, nil
}

// SetIndices repacks one-index-per-byte pixel data at the format bit depth.
func (b *Buffer) SetIndices(ix []byte) error {
	if !b.Format.Paletted() {
		return ErrBadFormat
	}
	bpp, _ := b.Format.BitsPerPixel()
	mask := byte(1<<bpp - 1)
	packed := make([]byte, (len(ix)*bpp+7)/8)
	for i, v := range ix {
		if v&^mask != 0 {
			return fmt.Errorf("frame: index %d exceeds %d-bit depth", v, bpp)
		}
		bit := i * bpp
		packed[bit>>3] |= v << (bit & 7)
	}
	b.Pixels = packed
	return nil
}

// ToRGB555 packs an 8-bit RGB triple into the target's 15-bit color layout.
func ToRGB555(r, g, b uint8) uint16 {
	return uint16(r>>3) | uint16(g>>3)<<5 | uint16(b>>3)<<10
}

// FromRGB555 expands a 15-bit color back to an 8-bit RGB triple. The low
// bits are replicated from the high ones so white stays white.
func FromRGB555(c uint16) (r, g, b uint8) {
	r = uint8(c&0x1f) << 3
	g = uint8(c>>5&0x1f) << 3
	b = uint8(c>>10&0x1f) << 3
	return r | r>>5, g | g>>5, b | b>>5
}

// Luminance returns the approximate brightness of a 15-bit color, used for
// canonical palette ordering.
func Luminance(c uint16) int {
	r, g, b := FromRGB555(c)
	return 2*int(r) + 5*int(g) + int(b)
}
