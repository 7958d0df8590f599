package gbavid

import (
	"errors"
	"fmt"
)

// Format selects the input pixel conversion. Exactly one must be chosen.
type Format int

const (
	FormatNone Format = iota
	FormatBlackWhite
	FormatPaletted
	FormatTruecolor
)

// Compression selects the final entropy stage.
type Compression int

const (
	CompressNone Compression = iota
	CompressRLE
	CompressLZ10
	CompressLZ11
)

// Color is an 8-bit RGB triple as given on the command line.
type Color struct {
	R, G, B uint8
}

// ParseColor parses an RRGGBB hex string.
func ParseColor(s string) (Color, error) {
	var c Color
	if len(s) != 6 {
		return c, fmt.Errorf("gbavid: bad color %q, want RRGGBB", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("gbavid: bad color %q, want RRGGBB", s)
	}
	return c, nil
}

// ConfigError reports an invalid, conflicting or missing pipeline option.
// It is always detected before any frame is processed.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "gbavid: invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// FormatError reports a stage receiving a frame that violates its declared
// pixel or size contract. It indicates a pipeline ordering bug and is fatal
// for the whole run.
type FormatError struct {
	Stage  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("gbavid: stage %s: %s", e.Stage, e.Reason)
}

func formatErrorf(stage, format string, args ...interface{}) error {
	return &FormatError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Config is the fully resolved pipeline selection. It is immutable once
// validated; the encoder never consults any other state.
type Config struct {
	Format Format
	// Colors is the palette or gray level count for FormatBlackWhite and
	// FormatPaletted.
	Colors int
	// Depth is the direct color bit depth for FormatTruecolor: 15, 16 or 24.
	Depth int

	AddColor0    *Color
	MoveColor0   *Color
	ShiftIndices int
	PruneIndices bool

	SpriteWidth  int
	SpriteHeight int
	Tiles        bool

	DeltaImage bool
	Delta8     bool
	Delta16    bool

	DXT1 bool

	Compression Compression
	VRAMSafe    bool

	DryRun bool
}

func (c Config) paletted() bool {
	return c.Format == FormatBlackWhite || c.Format == FormatPaletted
}

// reserved returns the number of palette slots held back for index edits.
func (c Config) reserved() int {
	n := c.ShiftIndices
	if c.AddColor0 != nil {
		n++
	}
	return n
}

// Validate checks the configuration for the whole run. Any error is a
// *ConfigError.
func (c Config) Validate() error {
	switch c.Format {
	case FormatBlackWhite, FormatPaletted:
		if c.Colors < 2 || c.Colors > 256 {
			return configErrorf("%d colors out of range, want 2-256", c.Colors)
		}
		if c.Colors+c.reserved() > 256 {
			return configErrorf("%d colors leave no room for reserved indices", c.Colors)
		}
	case FormatTruecolor:
		switch c.Depth {
		case 15, 16, 24:
		default:
			return configErrorf("bad truecolor depth %d, want 15, 16 or 24", c.Depth)
		}
	case FormatNone:
		return &ConfigError{Reason: "one format option is needed"}
	default:
		return configErrorf("unknown format %d", c.Format)
	}

	if !c.paletted() {
		if c.AddColor0 != nil || c.MoveColor0 != nil || c.ShiftIndices != 0 || c.PruneIndices {
			return &ConfigError{Reason: "color map options need a paletted format"}
		}
	}

	if c.Tiles && c.SpriteWidth != 0 {
		return &ConfigError{Reason: "only one of sprites and tiles is allowed"}
	}
	if (c.SpriteWidth == 0) != (c.SpriteHeight == 0) {
		return &ConfigError{Reason: "sprites need both width and height"}
	}
	if c.SpriteWidth != 0 && (c.SpriteWidth%8 != 0 || c.SpriteHeight%8 != 0) {
		return configErrorf("sprite size %dx%d not a multiple of 8", c.SpriteWidth, c.SpriteHeight)
	}

	if c.Delta8 && c.Delta16 {
		return &ConfigError{Reason: "only a single delta option is allowed"}
	}

	if c.DXT1 && (c.Format != FormatTruecolor || c.Depth == 24) {
		return &ConfigError{Reason: "dxt1 needs 15 or 16 bit truecolor"}
	}

	switch c.Compression {
	case CompressNone, CompressRLE, CompressLZ10, CompressLZ11:
	default:
		return configErrorf("unknown compression %d", c.Compression)
	}
	if c.VRAMSafe && c.Compression == CompressNone {
		return &ConfigError{Reason: "vram modifier needs a compression option"}
	}

	return nil
}

// FormatFromOptions resolves the three mutually exclusive format options as
// given on the command line. Each value is the option's color count or bit
// depth, zero when unset.
func FormatFromOptions(blackWhite, paletted, truecolor int) (Format, int, int, error) {
	set := 0
	for _, v := range []int{blackWhite, paletted, truecolor} {
		if v != 0 {
			set++
		}
	}
	switch {
	case set == 0:
		return FormatNone, 0, 0, &ConfigError{Reason: "one format option is needed"}
	case set > 1:
		return FormatNone, 0, 0, &ConfigError{Reason: "only a single format option is allowed"}
	case blackWhite != 0:
		return FormatBlackWhite, blackWhite, 0, nil
	case paletted != 0:
		return FormatPaletted, paletted, 0, nil
	}
	return FormatTruecolor, 0, truecolor, nil
}

// CompressionFromOptions resolves the mutually exclusive compression
// options as given on the command line.
func CompressionFromOptions(rle, lz10, lz11 bool) (Compression, error) {
	set := 0
	for _, v := range []bool{rle, lz10, lz11} {
		if v {
			set++
		}
	}
	if set > 1 {
		return CompressNone, &ConfigError{Reason: "only a single compression option is allowed"}
	}
	switch {
	case rle:
		return CompressRLE, nil
	case lz10:
		return CompressLZ10, nil
	case lz11:
		return CompressLZ11, nil
	}
	return CompressNone, nil
}

// errNoFrames is returned when the video source yields nothing at all.
var errNoFrames = errors.New("gbavid: video stream contains no frames")
