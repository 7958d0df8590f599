package sprite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodgit/gbavid/frame"
)

func TestMapIsPermutation(t *testing.T) {
	m, err := Map(16, 16, 8, 8)
	require.NoError(t, err)
	require.Len(t, m, 256)

	seen := make(map[int]bool, len(m))
	for _, j := range m {
		assert.False(t, seen[j])
		seen[j] = true
	}
}

func TestMapTileOrder(t *testing.T) {
	// A 16x8 image is two tiles side by side. The first 64 output pixels
	// come from the left tile, the next 64 from the right one.
	m, err := Map(16, 8, 16, 8)
	require.NoError(t, err)

	assert.Equal(t, 0, m[0])
	assert.Equal(t, 7, m[7])
	assert.Equal(t, 16, m[8]) // second row of the left tile
	assert.Equal(t, 8, m[64]) // first row of the right tile
	assert.Equal(t, 24, m[72])
}

func TestMapSpriteGrouping(t *testing.T) {
	// A 32x8 image cut into 16x8 sprites keeps both tiles of a sprite
	// contiguous before starting the next sprite.
	m, err := Map(32, 8, 16, 8)
	require.NoError(t, err)

	assert.Equal(t, 0, m[0])    // sprite 0, tile 0
	assert.Equal(t, 8, m[64])   // sprite 0, tile 1
	assert.Equal(t, 16, m[128]) // sprite 1, tile 0
	assert.Equal(t, 24, m[192]) // sprite 1, tile 1
}

func TestMapGeometryErrors(t *testing.T) {
	_, err := Map(16, 16, 4, 8)
	assert.Equal(t, errGeometry, err)

	_, err = Map(16, 16, 8, 4)
	assert.Equal(t, errGeometry, err)

	_, err = Map(24, 16, 16, 8)
	assert.Error(t, err)
}

func paletteBuffer(t *testing.T, w, h int) *frame.Buffer {
	t.Helper()
	b := &frame.Buffer{
		Format: frame.Paletted8,
		Width:  w,
		Height: h,
	}
	ix := make([]byte, w*h)
	for i := range ix {
		ix[i] = byte(i)
	}
	require.NoError(t, b.SetIndices(ix))
	return b
}

func TestApplyUnapplyPaletted(t *testing.T) {
	b := paletteBuffer(t, 16, 16)
	orig := append([]byte(nil), b.Pixels...)

	m, err := Map(16, 16, 8, 8)
	require.NoError(t, err)

	require.NoError(t, Apply(b, m))
	assert.NotEqual(t, orig, b.Pixels)

	require.NoError(t, Unapply(b, m))
	assert.Equal(t, orig, b.Pixels)
}

func TestApplyPlacesTilePixels(t *testing.T) {
	b := paletteBuffer(t, 16, 8)

	m, err := Map(16, 8, 16, 8)
	require.NoError(t, err)
	require.NoError(t, Apply(b, m))

	ix, err := b.Indices()
	require.NoError(t, err)

	// Left tile first, then the right tile.
	assert.Equal(t, byte(0), ix[0])
	assert.Equal(t, byte(16), ix[8])
	assert.Equal(t, byte(8), ix[64])
}

func TestApplyUnapplyDirectColor(t *testing.T) {
	b := &frame.Buffer{
		Format: frame.RGB565,
		Width:  8,
		Height: 16,
	}
	b.Pixels = make([]byte, 8*16*2)
	for i := range b.Pixels {
		b.Pixels[i] = byte(i * 7)
	}
	orig := append([]byte(nil), b.Pixels...)

	m, err := Map(8, 16, 8, 8)
	require.NoError(t, err)

	require.NoError(t, Apply(b, m))
	require.NoError(t, Unapply(b, m))
	assert.Equal(t, orig, b.Pixels)
}

func TestApplySizeMismatch(t *testing.T) {
	b := paletteBuffer(t, 8, 8)
	m, err := Map(16, 16, 8, 8)
	require.NoError(t, err)
	assert.Error(t, Apply(b, m))
}
