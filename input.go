package gbavid

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/bodgit/gbavid/frame"
)

// checkRaw verifies a stage input is an untouched RGB24 frame.
func checkRaw(stage string, b *frame.Buffer) error {
	if b.Format != frame.RGB888 || len(b.Pixels) != b.Width*b.Height*3 {
		return formatErrorf(stage, "want raw RGB24 input, got %s", b.Format)
	}
	return nil
}

// gray approximates perceived brightness of an RGB24 pixel.
func gray(r, g, b byte) int {
	return (2*int(r) + 5*int(g) + int(b)) / 8
}

// inputBlackWhite quantizes raw frames to a fixed number of gray levels.
type inputBlackWhite struct {
	levels  int
	reserve int
}

func (s *inputBlackWhite) Name() string { return "input blackwhite" }

func (s *inputBlackWhite) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkRaw(s.Name(), b); err != nil {
		return nil, err
	}

	f, err := frame.PalettedFormat(s.levels + s.reserve)
	if err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}

	palette := make([]uint16, s.levels)
	for i := range palette {
		v := uint8(i * 255 / (s.levels - 1))
		palette[i] = frame.ToRGB555(v, v, v)
	}

	ix := make([]byte, b.Width*b.Height)
	for i := range ix {
		p := b.Pixels[i*3:]
		ix[i] = byte(gray(p[0], p[1], p[2]) * (s.levels - 1) / 255)
	}

	out := &frame.Buffer{Palette: palette, Format: f, Width: b.Width, Height: b.Height}
	if err := out.SetIndices(ix); err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	return out, nil
}

// inputPaletted reduces raw frames to at most a fixed number of colors on
// the target's RGB555 grid, mapping every pixel by nearest-color search.
type inputPaletted struct {
	colors  int
	reserve int
}

func (s *inputPaletted) Name() string { return "input paletted" }

func (s *inputPaletted) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkRaw(s.Name(), b); err != nil {
		return nil, err
	}

	f, err := frame.PalettedFormat(s.colors + s.reserve)
	if err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i := 0; i < b.Width*b.Height; i++ {
		p := b.Pixels[i*3:]
		img.Pix[i*4+0] = p[0]
		img.Pix[i*4+1] = p[1]
		img.Pix[i*4+2] = p[2]
		img.Pix[i*4+3] = 0xff
	}

	q := quantize.MedianCutQuantizer{}
	quantized := q.Quantize(make(color.Palette, 0, s.colors), img)

	// Snap the quantized palette onto the reference RGB555 grid, dropping
	// entries that collapse onto the same 15-bit color.
	palette := make([]uint16, 0, len(quantized))
	seen := make(map[uint16]struct{}, len(quantized))
	for _, c := range quantized {
		r, g, b, _ := c.RGBA()
		c555 := frame.ToRGB555(uint8(r>>8), uint8(g>>8), uint8(b>>8))
		if _, ok := seen[c555]; ok {
			continue
		}
		seen[c555] = struct{}{}
		palette = append(palette, c555)
	}

	ix := make([]byte, b.Width*b.Height)
	for i := range ix {
		p := b.Pixels[i*3:]
		ix[i] = nearest(palette, p[0], p[1], p[2])
	}

	out := &frame.Buffer{Palette: palette, Format: f, Width: b.Width, Height: b.Height}
	if err := out.SetIndices(ix); err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	return out, nil
}

// nearest returns the palette index closest to the given RGB24 color.
func nearest(palette []uint16, r, g, b byte) byte {
	best, bestDist := 0, int(^uint(0)>>1)
	for i, c := range palette {
		pr, pg, pb := frame.FromRGB555(c)
		dr, dg, db := int(r)-int(pr), int(g)-int(pg), int(b)-int(pb)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return byte(best)
}

// inputTruecolor truncates raw frames to 15/16-bit direct color or passes
// 24-bit through unchanged.
type inputTruecolor struct {
	depth int
}

func (s *inputTruecolor) Name() string { return "input truecolor" }

func (s *inputTruecolor) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkRaw(s.Name(), b); err != nil {
		return nil, err
	}

	out := &frame.Buffer{Width: b.Width, Height: b.Height}
	switch s.depth {
	case 24:
		out.Format = frame.RGB888
		out.Pixels = b.Pixels
		return out, nil
	case 16:
		out.Format = frame.RGB565
	case 15:
		out.Format = frame.RGB555
	default:
		return nil, formatErrorf(s.Name(), "bad depth %d", s.depth)
	}

	out.Pixels = make([]byte, b.Width*b.Height*2)
	for i := 0; i < b.Width*b.Height; i++ {
		p := b.Pixels[i*3:]
		var c uint16
		if s.depth == 16 {
			c = uint16(p[0]>>3) | uint16(p[1]>>2)<<5 | uint16(p[2]>>3)<<11
		} else {
			c = frame.ToRGB555(p[0], p[1], p[2])
		}
		binary.LittleEndian.PutUint16(out.Pixels[i*2:], c)
	}
	return out, nil
}
