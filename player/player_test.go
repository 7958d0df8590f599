package player

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodgit/gbavid"
	"github.com/bodgit/gbavid/container"
	"github.com/bodgit/gbavid/frame"
	"github.com/bodgit/gbavid/video"
)

// rgbPattern builds deterministic raw RGB24 frames.
func rgbPattern(w, h, frames int, seed byte) []byte {
	out := make([]byte, w*h*3*frames)
	for i := range out {
		out[i] = byte(i)*seed + seed
	}
	return out
}

// grayRGB builds raw RGB24 frames where every channel of pixel i carries the
// same deterministic value, so the grayscale conversion is exactly known.
func grayRGB(w, h, frames int, seed byte) []byte {
	out := make([]byte, 0, w*h*3*frames)
	for f := 0; f < frames; f++ {
		for i := 0; i < w*h; i++ {
			v := byte(i*7+f*31) * seed
			out = append(out, v, v, v)
		}
	}
	return out
}

// grayFrame packs the device-format pixels the encoder must produce for one
// grayRGB frame.
func grayFrame(t *testing.T, w, h, f, levels int, seed byte) []byte {
	t.Helper()
	cf, err := frame.PalettedFormat(levels)
	require.NoError(t, err)

	ix := make([]byte, w*h)
	for i := range ix {
		v := byte(i*7+f*31) * seed
		ix[i] = byte(int(v) * (levels - 1) / 255)
	}

	b := &frame.Buffer{Format: cf, Width: w, Height: h}
	require.NoError(t, b.SetIndices(ix))
	return b.Pixels
}

func encodeStream(t *testing.T, config gbavid.Config, raw []byte, w, h, fps, frames uint32) []byte {
	t.Helper()
	e, err := gbavid.New(config, nil)
	require.NoError(t, err)

	src, err := video.NewRawSource(bytes.NewReader(raw), w, h, fps, frames)
	require.NoError(t, err)

	stream, _, err := e.Encode(src)
	require.NoError(t, err)

	b, err := stream.MarshalBinary()
	require.NoError(t, err)
	return b
}

func newPlayer(t *testing.T, data []byte, opts Options) (*Player, *SimHW) {
	t.Helper()
	r, err := container.NewReader(data)
	require.NoError(t, err)

	hw := NewSimHW()
	p, err := New(data, make([]byte, r.Header().MaxMemoryNeeded), hw, opts)
	require.NoError(t, err)
	return p, hw
}

func decodeAll(t *testing.T, p *Player) error {
	t.Helper()
	for i := 0; i < int(p.Header().FrameCount); i++ {
		if err := p.Next(); err != nil {
			return err
		}
	}
	return p.Next()
}

func TestPlainStreamRoundTrip(t *testing.T) {
	const w, h, frames = 8, 8, 3
	raw := grayRGB(w, h, frames, 1)

	data := encodeStream(t, gbavid.Config{
		Format: gbavid.FormatBlackWhite,
		Colors: 16,
	}, raw, w, h, 15, frames)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	for f := 0; f < frames; f++ {
		assert.Equal(t, grayFrame(t, w, h, f, 16, 1), hw.Frames[f], "frame %d", f)
	}
	require.Len(t, hw.Palettes, frames)
	assert.Equal(t, hw.Palettes[0], hw.Palettes[1])
}

func TestTiledRLERoundTrip(t *testing.T) {
	const w, h, frames = 16, 8, 2
	raw := grayRGB(w, h, frames, 3)

	data := encodeStream(t, gbavid.Config{
		Format:      gbavid.FormatBlackWhite,
		Colors:      4,
		Tiles:       true,
		Compression: gbavid.CompressRLE,
		VRAMSafe:    true,
	}, raw, w, h, 30, frames)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	for f := 0; f < frames; f++ {
		assert.Equal(t, grayFrame(t, w, h, f, 4, 3), hw.Frames[f], "frame %d", f)
	}
}

func TestSpriteLZ10RoundTrip(t *testing.T) {
	const w, h, frames = 16, 16, 2
	raw := grayRGB(w, h, frames, 5)

	data := encodeStream(t, gbavid.Config{
		Format:       gbavid.FormatBlackWhite,
		Colors:       16,
		SpriteWidth:  8,
		SpriteHeight: 16,
		Compression:  gbavid.CompressLZ10,
	}, raw, w, h, 30, frames)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	for f := 0; f < frames; f++ {
		assert.Equal(t, grayFrame(t, w, h, f, 16, 5), hw.Frames[f], "frame %d", f)
	}
}

func TestDeltaImageLoopRoundTrip(t *testing.T) {
	const w, h, frames = 8, 8, 3
	raw := grayRGB(w, h, frames, 7)

	data := encodeStream(t, gbavid.Config{
		Format:      gbavid.FormatBlackWhite,
		Colors:      4,
		DeltaImage:  true,
		Delta8:      true,
		Compression: gbavid.CompressLZ11,
	}, raw, w, h, 15, frames)

	p, hw := newPlayer(t, data, Options{Loop: true})
	// Two full passes; looping reseeds the reconstruction at frame 0.
	for i := 0; i < 2*frames; i++ {
		require.NoError(t, p.Next())
	}

	require.Len(t, hw.Frames, 2*frames)
	for f := 0; f < frames; f++ {
		want := grayFrame(t, w, h, f, 4, 7)
		assert.Equal(t, want, hw.Frames[f], "first pass frame %d", f)
		assert.Equal(t, want, hw.Frames[frames+f], "second pass frame %d", f)
	}
}

// palettedRGB maps blitted packed indices through a loaded color map back to
// RGB24 triples.
func palettedRGB(t *testing.T, pixels, palette []byte, f frame.ColorFormat, w, h int) []byte {
	t.Helper()
	b := &frame.Buffer{Pixels: pixels, Format: f, Width: w, Height: h}
	ix, err := b.Indices()
	require.NoError(t, err)

	out := make([]byte, 0, len(ix)*3)
	for _, v := range ix {
		r, g, bl := frame.FromRGB555(binary.LittleEndian.Uint16(palette[int(v)*2:]))
		out = append(out, r, g, bl)
	}
	return out
}

func TestPalettedSharedRoundTrip(t *testing.T) {
	const w, h, frames = 4, 4, 4

	// The same two colors in every frame, so the quantized color map is
	// promoted to a single shared one; the pattern still changes per frame.
	raw := make([]byte, 0, w*h*3*frames)
	for f := 0; f < frames; f++ {
		for i := 0; i < w*h; i++ {
			if (i+f)%2 == 0 {
				raw = append(raw, 255, 0, 0)
			} else {
				raw = append(raw, 0, 255, 0)
			}
		}
	}

	data := encodeStream(t, gbavid.Config{
		Format: gbavid.FormatPaletted,
		Colors: 4,
	}, raw, w, h, 15, frames)

	r, err := container.NewReader(data)
	require.NoError(t, err)
	hdr := r.Header()
	assert.Equal(t, uint32(2), hdr.BitsPerPixel)
	assert.Equal(t, uint32(4), hdr.ColorMapEntries)
	assert.NotZero(t, hdr.Flags&container.FlagSharedPalette)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	require.Len(t, hw.Palettes, frames)
	for f := 0; f < frames; f++ {
		assert.Equal(t, hw.Palettes[0], hw.Palettes[f], "palette %d", f)
		got := palettedRGB(t, hw.Frames[f], hw.Palettes[f], frame.Paletted2, w, h)
		assert.Equal(t, raw[f*w*h*3:(f+1)*w*h*3], got, "frame %d", f)
	}
}

func TestPalettedPerFrameRoundTrip(t *testing.T) {
	const w, h, frames = 4, 4, 2

	// Each frame quantizes to its own color pair, so the stream carries a
	// color map per frame instead of a shared one.
	pairs := [frames][2][3]byte{
		{{255, 0, 0}, {0, 255, 0}},
		{{0, 0, 255}, {255, 255, 255}},
	}
	raw := make([]byte, 0, w*h*3*frames)
	for f := 0; f < frames; f++ {
		for i := 0; i < w*h; i++ {
			c := pairs[f][i%2]
			raw = append(raw, c[0], c[1], c[2])
		}
	}

	data := encodeStream(t, gbavid.Config{
		Format:      gbavid.FormatPaletted,
		Colors:      4,
		Compression: gbavid.CompressLZ10,
	}, raw, w, h, 15, frames)

	r, err := container.NewReader(data)
	require.NoError(t, err)
	assert.Zero(t, r.Header().Flags&container.FlagSharedPalette)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	require.Len(t, hw.Palettes, frames)
	assert.NotEqual(t, hw.Palettes[0], hw.Palettes[1])
	for f := 0; f < frames; f++ {
		got := palettedRGB(t, hw.Frames[f], hw.Palettes[f], frame.Paletted2, w, h)
		assert.Equal(t, raw[f*w*h*3:(f+1)*w*h*3], got, "frame %d", f)
	}
}

func TestDXT1RoundTrip(t *testing.T) {
	const w, h, frames = 8, 8, 2

	// Uniform frames stay exact through the block compressor.
	raw := make([]byte, 0, w*h*3*frames)
	for _, v := range []byte{0x40, 0xc0} {
		for i := 0; i < w*h; i++ {
			raw = append(raw, v, v, v)
		}
	}

	data := encodeStream(t, gbavid.Config{
		Format:      gbavid.FormatTruecolor,
		Depth:       15,
		DXT1:        true,
		Compression: gbavid.CompressRLE,
	}, raw, w, h, 30, frames)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	for f, v := range []byte{0x40, 0xc0} {
		want := make([]byte, 0, w*h*2)
		for i := 0; i < w*h; i++ {
			want = binary.LittleEndian.AppendUint16(want, frame.ToRGB555(v, v, v))
		}
		assert.Equal(t, want, hw.Frames[f], "frame %d", f)
	}
}

func TestDelta16LZ11RoundTrip(t *testing.T) {
	const w, h, frames = 8, 4, 2
	raw := rgbPattern(w, h, frames, 11)

	data := encodeStream(t, gbavid.Config{
		Format:      gbavid.FormatTruecolor,
		Depth:       16,
		Delta16:     true,
		Compression: gbavid.CompressLZ11,
	}, raw, w, h, 30, frames)

	p, hw := newPlayer(t, data, Options{})
	assert.Equal(t, ErrEndOfStream, decodeAll(t, p))

	require.Len(t, hw.Frames, frames)
	for f := 0; f < frames; f++ {
		want := make([]byte, 0, w*h*2)
		for i := 0; i < w*h; i++ {
			px := raw[(f*w*h+i)*3:]
			c := uint16(px[0]>>3) | uint16(px[1]>>2)<<5 | uint16(px[2]>>3)<<11
			want = binary.LittleEndian.AppendUint16(want, c)
		}
		assert.Equal(t, want, hw.Frames[f], "frame %d", f)
	}
}

func TestScratchSizing(t *testing.T) {
	const w, h, frames = 8, 8, 2
	data := encodeStream(t, gbavid.Config{
		Format:      gbavid.FormatBlackWhite,
		Colors:      16,
		Tiles:       true,
		Compression: gbavid.CompressLZ10,
	}, grayRGB(w, h, frames, 1), w, h, 15, frames)

	r, err := container.NewReader(data)
	require.NoError(t, err)
	need := int(r.Header().MaxMemoryNeeded)
	require.Positive(t, need)

	// The recorded bound is exact: that much scratch decodes the whole
	// stream, one byte less is rejected up front.
	p, err := New(data, make([]byte, need), NewSimHW(), Options{})
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		require.NoError(t, p.Next())
	}

	_, err = New(data, make([]byte, need-1), NewSimHW(), Options{})
	assert.True(t, errors.Is(err, ErrScratchTooSmall))
}

func TestPlayPaced(t *testing.T) {
	const w, h, frames = 8, 8, 3
	data := encodeStream(t, gbavid.Config{
		Format: gbavid.FormatBlackWhite,
		Colors: 2,
	}, grayRGB(w, h, frames, 9), w, h, 15, frames)

	r, err := container.NewReader(data)
	require.NoError(t, err)

	hw := NewSimHW()
	hw.AutoRequest = true
	p, err := New(data, make([]byte, r.Header().MaxMemoryNeeded), hw, Options{Pacing: Paced})
	require.NoError(t, err)

	require.NoError(t, p.Play(context.Background()))
	assert.Len(t, hw.Frames, frames)
}

func TestPlayFreeRun(t *testing.T) {
	const w, h, frames = 8, 8, 2
	data := encodeStream(t, gbavid.Config{
		Format: gbavid.FormatBlackWhite,
		Colors: 2,
	}, grayRGB(w, h, frames, 9), w, h, 15, frames)

	p, hw := newPlayer(t, data, Options{Pacing: FreeRun})
	require.NoError(t, p.Play(context.Background()))
	assert.Len(t, hw.Frames, frames)
}

func TestPlayCancelled(t *testing.T) {
	const w, h = 8, 8
	data := encodeStream(t, gbavid.Config{
		Format: gbavid.FormatBlackWhite,
		Colors: 2,
	}, grayRGB(w, h, 1, 9), w, h, 15, 1)

	p, _ := newPlayer(t, data, Options{Pacing: Paced})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, p.Play(ctx))
}

func TestNewRejectsBadStream(t *testing.T) {
	_, err := New([]byte{1, 2, 3}, nil, NewSimHW(), Options{})
	assert.Error(t, err)
}
