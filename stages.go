package gbavid

import (
	"github.com/bodgit/gbavid/delta"
	"github.com/bodgit/gbavid/dxt"
	"github.com/bodgit/gbavid/frame"
	"github.com/bodgit/gbavid/lzss"
	"github.com/bodgit/gbavid/rle"
	"github.com/bodgit/gbavid/sprite"
)

// reshape rearranges pixels into the hardware tile walk. The permutation is
// built on first use, once the frame geometry is known.
type reshape struct {
	name          string
	spriteW       int // 0 means whole-image tiles
	spriteH       int
	m             []int
	width, height int
}

func newTileStage() *reshape {
	return &reshape{name: "tiles"}
}

func newSpriteStage(w, h int) *reshape {
	return &reshape{name: "sprites", spriteW: w, spriteH: h}
}

func (s *reshape) Name() string { return s.name }

func (s *reshape) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if s.m == nil || s.width != b.Width || s.height != b.Height {
		sw, sh := s.spriteW, s.spriteH
		if sw == 0 {
			sw, sh = b.Width, b.Height
		}
		m, err := sprite.Map(b.Width, b.Height, sw, sh)
		if err != nil {
			return nil, formatErrorf(s.name, "%v", err)
		}
		s.m, s.width, s.height = m, b.Width, b.Height
	}
	if err := sprite.Apply(b, s.m); err != nil {
		return nil, formatErrorf(s.name, "%v", err)
	}
	return b, nil
}

// deltaImage XORs each frame against the previous processed frame. The
// first frame of a stream passes through unchanged.
type deltaImage struct {
	prev []byte
}

func (*deltaImage) Name() string { return "delta image" }

func (s *deltaImage) Reset() { s.prev = nil }

func (s *deltaImage) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if s.prev == nil {
		s.prev = append([]byte(nil), b.Pixels...)
		return b, nil
	}
	if len(b.Pixels) != len(s.prev) {
		return nil, formatErrorf(s.Name(), "frame size changed from %d to %d", len(s.prev), len(b.Pixels))
	}

	out := make([]byte, len(b.Pixels))
	if err := delta.Image(out, b.Pixels, s.prev); err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	s.prev = b.Pixels
	b.Pixels = out
	return b, nil
}

// dxt1Stage block-compresses 16-bit direct color frames 4:1.
type dxt1Stage struct{}

func (dxt1Stage) Name() string { return "dxt1" }

func (s dxt1Stage) Process(b *frame.Buffer) (*frame.Buffer, error) {
	out, err := dxt.Encode(b.Pixels, b.Format, b.Width, b.Height)
	if err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	b.Pixels = out
	return b, nil
}

// delta8Stage rewrites the payload as consecutive byte differences.
type delta8Stage struct{}

func (delta8Stage) Name() string { return "delta8" }

func (delta8Stage) Process(b *frame.Buffer) (*frame.Buffer, error) {
	delta.Encode8(b.Pixels)
	return b, nil
}

// delta16Stage rewrites the payload as consecutive halfword differences.
type delta16Stage struct{}

func (delta16Stage) Name() string { return "delta16" }

func (s delta16Stage) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := delta.Encode16(b.Pixels); err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	return b, nil
}

// rleStage run-length encodes the payload.
type rleStage struct {
	vram bool
}

func (rleStage) Name() string { return "rle" }

func (s rleStage) Process(b *frame.Buffer) (*frame.Buffer, error) {
	out, err := rle.Compress(b.Pixels, s.vram)
	if err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	b.Pixels = out
	return b, nil
}

// lzStage dictionary-compresses the payload in the LZ10 or LZ11 format.
type lzStage struct {
	variant byte
	vram    bool
}

func (s lzStage) Name() string {
	if s.variant == lzss.Type11 {
		return "lz11"
	}
	return "lz10"
}

func (s lzStage) Process(b *frame.Buffer) (*frame.Buffer, error) {
	var (
		out []byte
		err error
	)
	if s.variant == lzss.Type11 {
		out, err = lzss.Compress11(b.Pixels, s.vram)
	} else {
		out, err = lzss.Compress10(b.Pixels, s.vram)
	}
	if err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	b.Pixels = out
	return b, nil
}

// padImageData pads the final payload with zero bytes to an alignment
// boundary so the device can store it word for word.
type padImageData struct {
	align int
}

func (padImageData) Name() string { return "pad" }

// Align marks this as the padding stage for the pipeline's pre-pad size
// bookkeeping.
func (s padImageData) Align() int { return s.align }

func (s padImageData) Process(b *frame.Buffer) (*frame.Buffer, error) {
	for len(b.Pixels)%s.align != 0 {
		b.Pixels = append(b.Pixels, 0)
	}
	return b, nil
}
