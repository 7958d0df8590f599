/*
Package gbavid converts a video stream into a compressed bitstream playable
in real time on the Game Boy Advance.

Each frame runs through an ordered pipeline of transforms: input pixel
format conversion, color map edits, sprite or tile reshaping, temporal and
serial delta coding, block compression and entropy compression. The
resulting frames are packed into a single container the on-device player
package reverses stage by stage.
*/
package gbavid

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"time"

	"github.com/bodgit/gbavid/container"
	"github.com/bodgit/gbavid/frame"
	"github.com/bodgit/gbavid/lzss"
	"github.com/bodgit/gbavid/video"
)

// Encoder drives the processing pipeline over a video stream.
type Encoder struct {
	config Config
	logger *log.Logger
}

// New returns an Encoder for the given validated configuration.
func New(config Config, logger *log.Logger) (*Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Encoder{
		config: config,
		logger: logger,
	}, nil
}

// outputFormat returns the pixel format frames will have on the device.
func (e *Encoder) outputFormat() (frame.ColorFormat, error) {
	c := e.config
	if c.Format == FormatTruecolor {
		switch c.Depth {
		case 15:
			return frame.RGB555, nil
		case 16:
			return frame.RGB565, nil
		}
		return frame.RGB888, nil
	}
	return frame.PalettedFormat(c.Colors + c.reserved())
}

// buildPipeline assembles the stages in canonical execution order: input,
// color conversion, addcolor0, movecolor0, shift, prune/pad, sprites,
// tiles, deltaimage, dxt1, delta8/delta16, rle/lz10/lz11, pad.
func (e *Encoder) buildPipeline() (*Pipeline, uint32, error) {
	c := e.config
	p := NewPipeline()
	var flags uint32

	// AddStep can only fail for a duplicate compression step and the
	// switch below adds exactly one, so plain appends cannot error.
	add := func(s Stage) { p.AddStep(s, false) }

	switch c.Format {
	case FormatBlackWhite:
		add(&inputBlackWhite{levels: c.Colors, reserve: c.reserved()})
	case FormatPaletted:
		add(&inputPaletted{colors: c.Colors, reserve: c.reserved()})
	case FormatTruecolor:
		add(&inputTruecolor{depth: c.Depth})
	}

	if c.Format == FormatPaletted {
		add(reorderColors{})
		if c.AddColor0 != nil {
			add(addColor0{color: *c.AddColor0})
		}
		if c.MoveColor0 != nil {
			add(moveColor0{color: *c.MoveColor0})
		}
		if c.ShiftIndices != 0 {
			add(shiftIndices{offset: c.ShiftIndices})
		}
		if c.PruneIndices {
			add(pruneIndices{})
			add(padColorMap{entries: 16})
		} else {
			add(padColorMap{entries: c.Colors + c.reserved()})
		}
	}

	if c.SpriteWidth != 0 {
		add(newSpriteStage(c.SpriteWidth, c.SpriteHeight))
		flags = container.FlagsWithSpriteSize(flags|container.FlagSprites, c.SpriteWidth, c.SpriteHeight)
	}
	if c.Tiles {
		add(newTileStage())
		flags |= container.FlagTiles
	}
	if c.DeltaImage {
		add(&deltaImage{})
		flags |= container.FlagDeltaImage
	}
	if c.DXT1 {
		add(dxt1Stage{})
		flags |= container.FlagDXT1
	}
	if c.Delta8 {
		add(delta8Stage{})
		flags |= container.FlagDelta8
	}
	if c.Delta16 {
		add(delta16Stage{})
		flags |= container.FlagDelta16
	}

	var err error
	switch c.Compression {
	case CompressRLE:
		err = p.AddStep(rleStage{vram: c.VRAMSafe}, true)
		flags |= container.FlagRLE
	case CompressLZ10:
		err = p.AddStep(lzStage{variant: lzss.Type10, vram: c.VRAMSafe}, true)
		flags |= container.FlagLZ10
	case CompressLZ11:
		err = p.AddStep(lzStage{variant: lzss.Type11, vram: c.VRAMSafe}, true)
		flags |= container.FlagLZ11
	}
	if err != nil {
		return nil, 0, err
	}

	add(padImageData{align: 4})

	return p, flags, nil
}

// Encode processes every frame of src into a container stream plus
// diagnostics. The returned stream is ready to marshal.
func (e *Encoder) Encode(src video.Source) (*container.Stream, *Stats, error) {
	info := src.Info()

	format, err := e.outputFormat()
	if err != nil {
		return nil, nil, err
	}

	pipeline, flags, err := e.buildPipeline()
	if err != nil {
		return nil, nil, err
	}
	pipeline.Reset()
	e.logger.Printf("Applying processing: %s\n", pipeline.Description())

	stream := container.NewStream(info.Width, info.Height, info.FPS, format, flags)
	stats := newStats(info.Duration)

	start := time.Now()
	lastProgress := 0
	for {
		raw, err := src.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("gbavid: reading frame %d: %w", stream.FrameCount(), err)
		}

		cf, err := pipeline.Process(&frame.Buffer{
			Pixels: raw,
			Format: frame.RGB888,
			Width:  int(info.Width),
			Height: int(info.Height),
		})
		if err != nil {
			return nil, nil, err
		}

		if err := stream.AddFrame(cf.Data, cf.Palette, cf.Scratch); err != nil {
			return nil, nil, err
		}
		stats.add(raw, cf)

		if info.FrameCount > 0 {
			if progress := 100 * stream.FrameCount() / int(info.FrameCount); progress != lastProgress {
				lastProgress = progress
				elapsed := time.Since(start).Seconds()
				fps := float64(stream.FrameCount()) / elapsed
				rest := float64(int(info.FrameCount)-stream.FrameCount()) / fps
				e.logger.Printf("%d%%, %.1f fps, %.1fs remaining\n", progress, fps, rest)
			}
		}
	}

	if stream.FrameCount() == 0 {
		return nil, nil, errNoFrames
	}

	e.logger.Printf("Input size: %.2fMB\n", float64(stats.InputBytes)/(1024*1024))
	e.logger.Printf("Compressed size: %.2fMB (reference %.2fMB)\n",
		float64(stats.OutputBytes)/(1024*1024), float64(stats.ReferenceBytes)/(1024*1024))
	e.logger.Printf("Bit rate: %.1fkB/s\n", stats.BitRate())

	return stream, stats, nil
}
