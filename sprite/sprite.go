/*
Package sprite reshapes linear pixel data into the target hardware's native
tile addressing order.

The hardware walks character data as a sequence of 8 by 8 pixel tiles,
row-major within each tile. Sprite mode groups the tiles of each sprite
together so one sprite's character data is contiguous; tile mode is the
degenerate case where the whole image is a single sprite. The transform is a
pure permutation of pixels and therefore bit-exact invertible.
*/
package sprite

import (
	"errors"
	"fmt"

	"github.com/bodgit/gbavid/frame"
)

// TileSize is the pixel width and height of one hardware tile.
const TileSize = 8

var errGeometry = errors.New("sprite: dimensions not a multiple of the tile size")

// Map builds the pixel permutation for an image of w by h pixels cut into
// sprites of sw by sh pixels. Entry i names the linear input pixel that
// lands at output position i. Tile mode is Map(w, h, w, h).
func Map(w, h, sw, sh int) ([]int, error) {
	if sw%TileSize != 0 || sh%TileSize != 0 {
		return nil, errGeometry
	}
	if w%sw != 0 || h%sh != 0 {
		return nil, fmt.Errorf("sprite: %dx%d image not divisible into %dx%d sprites", w, h, sw, sh)
	}

	m := make([]int, 0, w*h)
	for sy := 0; sy < h; sy += sh {
		for sx := 0; sx < w; sx += sw {
			for ty := 0; ty < sh; ty += TileSize {
				for tx := 0; tx < sw; tx += TileSize {
					for y := 0; y < TileSize; y++ {
						for x := 0; x < TileSize; x++ {
							m = append(m, (sy+ty+y)*w+sx+tx+x)
						}
					}
				}
			}
		}
	}
	return m, nil
}

func pixelSize(f frame.ColorFormat) int {
	switch f {
	case frame.RGB555, frame.RGB565:
		return 2
	case frame.RGB888:
		return 3
	}
	return 0
}

func permuteBytes(pixels []byte, m []int, size int, inverse bool) ([]byte, error) {
	if len(pixels) != len(m)*size {
		return nil, errors.New("sprite: pixel data does not match permutation")
	}
	out := make([]byte, len(pixels))
	for i, j := range m {
		src, dst := j*size, i*size
		if inverse {
			src, dst = dst, src
		}
		copy(out[dst:dst+size], pixels[src:src+size])
	}
	return out, nil
}

func permute(b *frame.Buffer, m []int, inverse bool) error {
	if b.Format.Paletted() {
		ix, err := b.Indices()
		if err != nil {
			return err
		}
		if len(ix) != len(m) {
			return errors.New("sprite: pixel data does not match permutation")
		}
		out := make([]byte, len(ix))
		for i, j := range m {
			if inverse {
				out[j] = ix[i]
			} else {
				out[i] = ix[j]
			}
		}
		return b.SetIndices(out)
	}

	out, err := permuteBytes(b.Pixels, m, pixelSize(b.Format), inverse)
	if err != nil {
		return err
	}
	b.Pixels = out
	return nil
}

// Apply reorders the buffer's pixels from linear to tile order.
func Apply(b *frame.Buffer, m []int) error {
	return permute(b, m, false)
}

// Unapply restores linear order from tile order.
func Unapply(b *frame.Buffer, m []int) error {
	return permute(b, m, true)
}
