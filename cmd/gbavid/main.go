package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/gbavid"
	"github.com/bodgit/gbavid/carray"
	"github.com/bodgit/gbavid/video"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version, V",
		Usage: "print the version",
	}
}

func parseSprites(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("bad sprite size %q, want WxH", s)
	}
	return w, h, nil
}

func buildConfig(c *cli.Context) (gbavid.Config, error) {
	var config gbavid.Config

	format, colors, depth, err := gbavid.FormatFromOptions(c.Int("blackwhite"), c.Int("paletted"), c.Int("truecolor"))
	if err != nil {
		return config, err
	}
	config.Format = format
	config.Colors = colors
	config.Depth = depth

	if s := c.String("addcolor0"); s != "" {
		color, err := gbavid.ParseColor(s)
		if err != nil {
			return config, err
		}
		config.AddColor0 = &color
	}
	if s := c.String("movecolor0"); s != "" {
		color, err := gbavid.ParseColor(s)
		if err != nil {
			return config, err
		}
		config.MoveColor0 = &color
	}
	config.ShiftIndices = c.Int("shift")
	config.PruneIndices = c.Bool("prune")

	if s := c.String("sprites"); s != "" {
		if config.SpriteWidth, config.SpriteHeight, err = parseSprites(s); err != nil {
			return config, err
		}
	}
	config.Tiles = c.Bool("tiles")

	config.DeltaImage = c.Bool("deltaimage")
	config.Delta8 = c.Bool("delta8")
	config.Delta16 = c.Bool("delta16")
	config.DXT1 = c.Bool("dxt1")

	if config.Compression, err = gbavid.CompressionFromOptions(c.Bool("rle"), c.Bool("lz10"), c.Bool("lz11")); err != nil {
		return config, err
	}
	config.VRAMSafe = c.Bool("vram")
	config.DryRun = c.Bool("dry-run")

	return config, config.Validate()
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func convert(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowAppHelpAndExit(c, 2)
	}
	inFile, outName := c.Args().Get(0), c.Args().Get(1)

	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}

	config, err := buildConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	encoder, err := gbavid.New(config, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	src, err := video.OpenRaw(inFile, uint32(c.Uint("width")), uint32(c.Uint("height")), uint32(c.Uint("fps")))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer src.Close()

	info := src.Info()
	logger.Printf("Opened %s: %s, %dx%d@%d, duration %.1fs, %d frames\n",
		inFile, info.Codec, info.Width, info.Height, info.FPS, info.Duration, info.FrameCount)

	stream, stats, err := encoder.Encode(src)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Printf("Compression ratio: %.2f\n", stats.Ratio())

	if config.DryRun {
		return nil
	}

	data, err := stream.MarshalBinary()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	name := filepath.Base(outName)
	for _, out := range []struct {
		suffix string
		write  func(*os.File) error
	}{
		{".bin", func(f *os.File) error { _, err := f.Write(data); return err }},
		{".h", func(f *os.File) error { return carray.WriteHeader(f, name, data) }},
		{".c", func(f *os.File) error { return carray.WriteSource(f, name, data) }},
	} {
		path := outName + out.suffix
		logger.Printf("Writing %s\n", path)
		if err := writeFile(path, out.write); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "gbavid"
	app.Usage = "Convert and compress a video file to a GBA-playable bitstream"
	app.UsageText = "gbavid [options] INFILE OUTNAME"
	app.Version = "1.0.0"
	app.Description = strings.Join([]string{
		"INFILE must be a raw RGB24 stream, e.g. produced with",
		"ffmpeg -i foo.avi -f rawvideo -pix_fmt rgb24 foo.rgb.",
		"OUTNAME.bin, OUTNAME.h and OUTNAME.c are written unless --dry-run is set.",
		"Execution order: input, color conversion, addcolor0, movecolor0, shift,",
		"prune, sprites, tiles, deltaimage, dxt1, delta8 / delta16, rle, lz10 / lz11, output.",
	}, "\n   ")

	app.Flags = []cli.Flag{
		&cli.UintFlag{Name: "width", Usage: "input frame width in pixels", Required: true},
		&cli.UintFlag{Name: "height", Usage: "input frame height in pixels", Required: true},
		&cli.UintFlag{Name: "fps", Usage: "input frame rate", Required: true},
		&cli.IntFlag{Name: "blackwhite", Usage: "convert to grayscale with `N` levels"},
		&cli.IntFlag{Name: "paletted", Usage: "convert to a color map of `N` colors"},
		&cli.IntFlag{Name: "truecolor", Usage: "convert to direct color of `N` bits (15, 16 or 24)"},
		&cli.StringFlag{Name: "addcolor0", Usage: "add `RRGGBB` as reserved color map index 0"},
		&cli.StringFlag{Name: "movecolor0", Usage: "move `RRGGBB` to color map index 0"},
		&cli.IntFlag{Name: "shift", Usage: "shift all color map indices up by `N`"},
		&cli.BoolFlag{Name: "prune", Usage: "drop unused color map entries, then pad to 16"},
		&cli.StringFlag{Name: "sprites", Usage: "reshape into sprites of `WxH` pixels"},
		&cli.BoolFlag{Name: "tiles", Usage: "reshape into 8x8 tiles"},
		&cli.BoolFlag{Name: "deltaimage", Usage: "delta-code frames against the previous frame"},
		&cli.BoolFlag{Name: "delta8", Usage: "delta-code payload bytes"},
		&cli.BoolFlag{Name: "delta16", Usage: "delta-code payload halfwords"},
		&cli.BoolFlag{Name: "dxt1", Usage: "block-compress truecolor frames 4:1"},
		&cli.BoolFlag{Name: "rle", Usage: "run-length encode frames"},
		&cli.BoolFlag{Name: "lz10", Usage: "LZ10-compress frames"},
		&cli.BoolFlag{Name: "lz11", Usage: "LZ11-compress frames"},
		&cli.BoolFlag{Name: "vram", Usage: "keep compressed output safe for 16-bit video memory"},
		&cli.BoolFlag{Name: "dry-run", Usage: "compute statistics only, write nothing"},
		&cli.BoolFlag{Name: "verbose, v", Usage: "increase verbosity"},
	}

	app.Action = convert

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
