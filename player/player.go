/*
Package player implements the device-side streaming decoder.

The player parses the container header once, then reverses the recorded
stage flags frame by frame in reverse canonical order: entropy
decompression, serial delta decoding, block decompression, temporal delta
reconstruction and the tile walk. All intermediate results live in a single
fixed-size scratch region sized at build time; the header's recorded memory
bound is validated against it before the first frame, and no allocation
happens once decoding has started.

Frame pacing is an explicit choice: Paced waits for the hardware frame
timer before each frame, FreeRun decodes flat out and only measures. A late
frame is still presented and the next one decoded immediately; frames are
never dropped or reordered.
*/
package player

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"

	"github.com/bodgit/gbavid/container"
	"github.com/bodgit/gbavid/delta"
	"github.com/bodgit/gbavid/dxt"
	"github.com/bodgit/gbavid/frame"
	"github.com/bodgit/gbavid/lzss"
	"github.com/bodgit/gbavid/rle"
	"github.com/bodgit/gbavid/sprite"
)

// Pacing selects how the decode loop is driven.
type Pacing int

const (
	// Paced waits for the frame timer before decoding each frame.
	Paced Pacing = iota
	// FreeRun decodes as fast as possible; the timer is advisory only.
	FreeRun
)

// Options configure a Player.
type Options struct {
	Pacing Pacing
	// Loop restarts from frame 0 after the last frame instead of halting.
	Loop   bool
	Logger *log.Logger
}

var (
	// ErrScratchTooSmall means the stream declares a larger working set
	// than the statically reserved scratch region. This is a build-time
	// class of bug in the shipped bitstream, not a runtime condition.
	ErrScratchTooSmall = errors.New("player: stream needs more scratch memory than reserved")
	// ErrEndOfStream is returned by Next once all frames have been
	// presented and looping is off.
	ErrEndOfStream = errors.New("player: end of stream")
)

// location tracks where the working buffer currently lives so the next
// stage can pick the non-overlapping end of the scratch region.
type location int

const (
	locStream location = iota // read-only bitstream memory
	locFront
	locBack
	locPrev // the persistent previous-frame buffer
)

// Player decodes one bitstream. It is not safe for concurrent use; the
// decode loop is the only writer of the scratch and previous-frame
// buffers.
type Player struct {
	r      *container.Reader
	h      container.Header
	hw     Hardware
	opts   Options
	logger *log.Logger

	format    frame.ColorFormat
	frameSize int
	scratch   []byte
	prev      []byte
	tileMap   []int
	next      int
}

func formatForBits(bits uint32) (frame.ColorFormat, error) {
	switch bits {
	case 1:
		return frame.Paletted1, nil
	case 2:
		return frame.Paletted2, nil
	case 4:
		return frame.Paletted4, nil
	case 8:
		return frame.Paletted8, nil
	case 15:
		return frame.RGB555, nil
	case 16:
		return frame.RGB565, nil
	case 24:
		return frame.RGB888, nil
	}
	return 0, frame.ErrBadFormat
}

// New parses the stream header and prepares a player around the statically
// reserved scratch region. Everything the decode loop needs is allocated
// here; Next and Play allocate nothing.
func New(data, scratch []byte, hw Hardware, opts Options) (*Player, error) {
	r, err := container.NewReader(data)
	if err != nil {
		return nil, err
	}
	h := r.Header()

	if int(h.MaxMemoryNeeded) > len(scratch) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrScratchTooSmall, h.MaxMemoryNeeded, len(scratch))
	}

	f, err := formatForBits(h.BitsPerPixel)
	if err != nil {
		return nil, err
	}
	if h.Flags&container.FlagDXT1 != 0 && f != frame.RGB555 && f != frame.RGB565 {
		return nil, errors.New("player: dxt1 stream is not 16-bit direct color")
	}

	size, err := frame.StorageSize(f, int(h.Width), int(h.Height))
	if err != nil {
		return nil, err
	}

	p := &Player{
		r:         r,
		h:         h,
		hw:        hw,
		opts:      opts,
		logger:    opts.Logger,
		format:    f,
		frameSize: size,
		scratch:   scratch,
	}
	if p.logger == nil {
		p.logger = log.New(ioutil.Discard, "", 0)
	}

	if h.Flags&container.FlagDeltaImage != 0 {
		p.prev = make([]byte, size)
	}

	switch {
	case h.Flags&container.FlagSprites != 0:
		sw, sh := container.SpriteSize(h.Flags)
		if p.tileMap, err = sprite.Map(int(h.Width), int(h.Height), sw, sh); err != nil {
			return nil, err
		}
	case h.Flags&container.FlagTiles != 0:
		if p.tileMap, err = sprite.Map(int(h.Width), int(h.Height), int(h.Width), int(h.Height)); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Header returns the parsed stream header.
func (p *Player) Header() container.Header {
	return p.h
}

// Position returns the index of the next frame to decode.
func (p *Player) Position() int {
	return p.next
}

// alloc picks a destination of n bytes on whichever end of the scratch
// region the current buffer does not occupy.
func (p *Player) alloc(n int, cur location) ([]byte, location, error) {
	if n > len(p.scratch) {
		return nil, 0, fmt.Errorf("%w: stage needs %d bytes", ErrScratchTooSmall, n)
	}
	if cur == locFront {
		return p.scratch[len(p.scratch)-n:], locBack, nil
	}
	return p.scratch[:n], locFront, nil
}

// ensureWritable moves the working buffer into scratch if it still aliases
// the read-only bitstream, so in-place stages never touch stream memory.
func (p *Player) ensureWritable(cur []byte, loc location) ([]byte, location, error) {
	if loc != locStream {
		return cur, loc, nil
	}
	dst, dloc, err := p.alloc(len(cur), loc)
	if err != nil {
		return nil, 0, err
	}
	copy(dst, cur)
	return dst, dloc, nil
}

func (p *Player) decode(index int, payload []byte) ([]byte, error) {
	h := p.h
	cur, loc := payload, locStream

	if h.Flags&(container.FlagRLE|container.FlagLZ10|container.FlagLZ11) != 0 {
		var (
			n   int
			err error
		)
		if h.Flags&container.FlagRLE != 0 {
			n, err = rle.DecompressedSize(cur)
		} else {
			n, err = lzss.DecompressedSize(cur)
		}
		if err != nil {
			return nil, err
		}
		dst, dloc, err := p.alloc(n, loc)
		if err != nil {
			return nil, err
		}
		if h.Flags&container.FlagRLE != 0 {
			cur, err = rle.Decompress(dst, cur)
		} else {
			cur, err = lzss.Decompress(dst, cur)
		}
		if err != nil {
			return nil, err
		}
		loc = dloc
	} else {
		// Uncompressed payloads carry word padding that is not pixel data.
		want := p.payloadSize()
		if len(cur) < want {
			return nil, fmt.Errorf("player: frame %d payload too short", index)
		}
		cur = cur[:want]
	}

	if h.Flags&container.FlagDelta16 != 0 {
		var err error
		if cur, loc, err = p.ensureWritable(cur, loc); err != nil {
			return nil, err
		}
		if err = delta.Decode16(cur); err != nil {
			return nil, err
		}
	}
	if h.Flags&container.FlagDelta8 != 0 {
		var err error
		if cur, loc, err = p.ensureWritable(cur, loc); err != nil {
			return nil, err
		}
		delta.Decode8(cur)
	}

	if h.Flags&container.FlagDXT1 != 0 {
		dst, dloc, err := p.alloc(p.frameSize, loc)
		if err != nil {
			return nil, err
		}
		if cur, err = dxt.Decode(dst, cur, p.format, int(h.Width), int(h.Height)); err != nil {
			return nil, err
		}
		loc = dloc
	}

	if h.Flags&container.FlagDeltaImage != 0 {
		if len(cur) != p.frameSize {
			return nil, fmt.Errorf("player: frame %d delta payload is %d bytes, want %d", index, len(cur), p.frameSize)
		}
		if index == 0 {
			// Frame 0 is stored verbatim and reseeds the reconstruction.
			copy(p.prev, cur)
		} else if err := delta.Image(p.prev, cur, p.prev); err != nil {
			return nil, err
		}
		cur, loc = p.prev, locPrev
	}

	if p.tileMap != nil {
		if len(cur) != p.frameSize {
			return nil, fmt.Errorf("player: frame %d tiled payload is %d bytes, want %d", index, len(cur), p.frameSize)
		}
		dst, _, err := p.alloc(p.frameSize, loc)
		if err != nil {
			return nil, err
		}
		p.untile(dst, cur)
		cur = dst
	}

	if len(cur) != p.frameSize {
		return nil, fmt.Errorf("player: frame %d decodes to %d bytes, want %d", index, len(cur), p.frameSize)
	}
	return cur, nil
}

// payloadSize is the expected pre-padding payload size of an uncompressed
// frame: the DXT1 block data size if that stage is active, otherwise the
// packed frame size.
func (p *Player) payloadSize() int {
	if p.h.Flags&container.FlagDXT1 != 0 {
		return int(p.h.Width) * int(p.h.Height) / (dxt.BlockSize * dxt.BlockSize) * 8
	}
	return p.frameSize
}

// untile reverses the tile walk without unpacking, writing pixel j of the
// linear image from pixel i of the tiled data.
func (p *Player) untile(dst, src []byte) {
	switch p.format {
	case frame.RGB555, frame.RGB565:
		for i, j := range p.tileMap {
			dst[j*2] = src[i*2]
			dst[j*2+1] = src[i*2+1]
		}
	case frame.RGB888:
		for i, j := range p.tileMap {
			copy(dst[j*3:j*3+3], src[i*3:i*3+3])
		}
	default:
		bpp, _ := p.format.BitsPerPixel()
		mask := byte(1<<bpp - 1)
		for i := range dst {
			dst[i] = 0
		}
		for i, j := range p.tileMap {
			sbit, dbit := i*bpp, j*bpp
			v := src[sbit>>3] >> (sbit & 7) & mask
			dst[dbit>>3] |= v << (dbit & 7)
		}
	}
}

// Next decodes and presents the next frame in sequence. It returns
// ErrEndOfStream after the last frame unless looping is enabled.
func (p *Player) Next() error {
	if p.next >= int(p.h.FrameCount) {
		if !p.opts.Loop {
			return ErrEndOfStream
		}
		p.next = 0
	}

	payload, palette, err := p.r.Frame(p.next)
	if err != nil {
		return err
	}

	if len(palette) > 0 {
		if err := p.hw.LoadPalette(palette); err != nil {
			return err
		}
	}

	pixels, err := p.decode(p.next, payload)
	if err != nil {
		return err
	}
	if err := p.hw.Blit(pixels); err != nil {
		return err
	}

	p.next++
	return nil
}

// Play runs the decode loop until the stream ends or the context is
// cancelled. In Paced mode each frame waits for the hardware frame timer;
// in FreeRun mode the loop decodes continuously and the per-frame time is
// only measured.
func (p *Player) Play(ctx context.Context) error {
	if err := p.hw.ConfigureTimer(p.h.FPS); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.opts.Pacing == Paced {
			for !p.hw.FrameRequested() {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}

		index := p.next
		start := p.hw.Elapsed()
		err := p.Next()
		if err == ErrEndOfStream {
			return nil
		}
		if err != nil {
			return err
		}
		p.logger.Printf("frame %d decoded in %v\n", index, p.hw.Elapsed()-start)
	}
}
