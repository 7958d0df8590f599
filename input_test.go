package gbavid

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodgit/gbavid/frame"
)

func rawBuffer(pixels []byte, w, h int) *frame.Buffer {
	return &frame.Buffer{Pixels: pixels, Format: frame.RGB888, Width: w, Height: h}
}

func TestInputBlackWhite(t *testing.T) {
	raw := []byte{
		0, 0, 0,
		255, 255, 255,
		128, 128, 128,
		255, 255, 255,
	}

	s := &inputBlackWhite{levels: 2}
	out, err := s.Process(rawBuffer(raw, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, frame.Paletted1, out.Format)
	assert.Equal(t, []uint16{frame.ToRGB555(0, 0, 0), frame.ToRGB555(255, 255, 255)}, out.Palette)

	ix, err := out.Indices()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 1}, ix)
}

func TestInputBlackWhiteRamp(t *testing.T) {
	s := &inputBlackWhite{levels: 4}
	out, err := s.Process(rawBuffer(make([]byte, 2*2*3), 2, 2))
	require.NoError(t, err)

	require.Len(t, out.Palette, 4)
	assert.Equal(t, frame.ToRGB555(0, 0, 0), out.Palette[0])
	assert.Equal(t, frame.ToRGB555(85, 85, 85), out.Palette[1])
	assert.Equal(t, frame.ToRGB555(170, 170, 170), out.Palette[2])
	assert.Equal(t, frame.ToRGB555(255, 255, 255), out.Palette[3])
}

func TestInputBlackWhiteReserve(t *testing.T) {
	// Two levels plus three reserved slots need a wider index format even
	// though only the two ramp colors are emitted.
	s := &inputBlackWhite{levels: 2, reserve: 3}
	out, err := s.Process(rawBuffer(make([]byte, 2*2*3), 2, 2))
	require.NoError(t, err)

	assert.Equal(t, frame.Paletted4, out.Format)
	assert.Len(t, out.Palette, 2)
}

func TestInputPaletted(t *testing.T) {
	// Four pixels in two colors that survive the RGB555 round trip exactly.
	raw := []byte{
		255, 0, 0,
		0, 255, 0,
		255, 0, 0,
		0, 255, 0,
	}

	s := &inputPaletted{colors: 4}
	out, err := s.Process(rawBuffer(raw, 2, 2))
	require.NoError(t, err)

	require.True(t, out.Format.Paletted())
	require.NotEmpty(t, out.Palette)
	assert.LessOrEqual(t, len(out.Palette), 4)

	// Every pixel must map back to its own color.
	ix, err := out.Indices()
	require.NoError(t, err)
	for i, v := range ix {
		r, g, b := frame.FromRGB555(out.Palette[v])
		assert.Equal(t, raw[i*3], r, "pixel %d red", i)
		assert.Equal(t, raw[i*3+1], g, "pixel %d green", i)
		assert.Equal(t, raw[i*3+2], b, "pixel %d blue", i)
	}
}

func TestNearest(t *testing.T) {
	palette := []uint16{
		frame.ToRGB555(0, 0, 0),
		frame.ToRGB555(255, 0, 0),
		frame.ToRGB555(255, 255, 255),
	}

	assert.Equal(t, byte(0), nearest(palette, 10, 10, 10))
	assert.Equal(t, byte(1), nearest(palette, 200, 30, 30))
	assert.Equal(t, byte(2), nearest(palette, 240, 240, 240))
}

func TestInputTruecolor(t *testing.T) {
	raw := []byte{0x12, 0x34, 0x56}

	s := &inputTruecolor{depth: 15}
	out, err := s.Process(rawBuffer(raw, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, frame.RGB555, out.Format)
	assert.Equal(t, frame.ToRGB555(0x12, 0x34, 0x56), binary.LittleEndian.Uint16(out.Pixels))

	s = &inputTruecolor{depth: 16}
	out, err = s.Process(rawBuffer(raw, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, frame.RGB565, out.Format)
	want := uint16(0x12>>3) | uint16(0x34>>2)<<5 | uint16(0x56>>3)<<11
	assert.Equal(t, want, binary.LittleEndian.Uint16(out.Pixels))

	s = &inputTruecolor{depth: 24}
	out, err = s.Process(rawBuffer(raw, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, frame.RGB888, out.Format)
	assert.Equal(t, raw, out.Pixels)
}

func TestInputRejectsNonRaw(t *testing.T) {
	b := &frame.Buffer{Pixels: make([]byte, 2), Format: frame.RGB555, Width: 1, Height: 1}

	for _, s := range []Stage{
		&inputBlackWhite{levels: 2},
		&inputPaletted{colors: 4},
		&inputTruecolor{depth: 15},
	} {
		_, err := s.Process(b)
		assert.IsType(t, &FormatError{}, err, s.Name())
	}
}
