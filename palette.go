package gbavid

import (
	"sort"

	"github.com/bodgit/gbavid/frame"
)

// checkPaletted verifies a stage input carries a color map.
func checkPaletted(stage string, b *frame.Buffer) error {
	if !b.Format.Paletted() {
		return formatErrorf(stage, "want paletted input, got %s", b.Format)
	}
	return nil
}

// remap rewrites every pixel index through the given old-to-new table.
func remap(stage string, b *frame.Buffer, table []byte) error {
	ix, err := b.Indices()
	if err != nil {
		return formatErrorf(stage, "%v", err)
	}
	for i, v := range ix {
		ix[i] = table[v]
	}
	if err := b.SetIndices(ix); err != nil {
		return formatErrorf(stage, "%v", err)
	}
	return nil
}

// reorderColors sorts the color map by luminance and remaps indices to
// match, stabilizing palettes across frames for the delta and entropy
// stages.
type reorderColors struct{}

func (reorderColors) Name() string { return "reorder colors" }

func (s reorderColors) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkPaletted(s.Name(), b); err != nil {
		return nil, err
	}

	order := make([]int, len(b.Palette))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return frame.Luminance(b.Palette[order[i]]) < frame.Luminance(b.Palette[order[j]])
	})

	sorted := make([]uint16, len(b.Palette))
	table := make([]byte, 256)
	for newIdx, oldIdx := range order {
		sorted[newIdx] = b.Palette[oldIdx]
		table[oldIdx] = byte(newIdx)
	}
	b.Palette = sorted

	if err := remap(s.Name(), b, table); err != nil {
		return nil, err
	}
	return b, nil
}

// addColor0 inserts a reserved color at index 0 and shifts all pixel
// indices up by one.
type addColor0 struct {
	color Color
}

func (addColor0) Name() string { return "add color 0" }

func (s addColor0) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkPaletted(s.Name(), b); err != nil {
		return nil, err
	}

	bpp, _ := b.Format.BitsPerPixel()
	if len(b.Palette)+1 > 1<<bpp {
		return nil, formatErrorf(s.Name(), "no free color map slot at %d bits", bpp)
	}

	b.Palette = append([]uint16{frame.ToRGB555(s.color.R, s.color.G, s.color.B)}, b.Palette...)

	table := make([]byte, 256)
	for i := range table {
		table[i] = byte(i + 1)
	}
	if err := remap(s.Name(), b, table); err != nil {
		return nil, err
	}
	return b, nil
}

// moveColor0 relocates an existing color to index 0.
type moveColor0 struct {
	color Color
}

func (moveColor0) Name() string { return "move color 0" }

func (s moveColor0) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkPaletted(s.Name(), b); err != nil {
		return nil, err
	}

	want := frame.ToRGB555(s.color.R, s.color.G, s.color.B)
	pos := -1
	for i, c := range b.Palette {
		if c == want {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, formatErrorf(s.Name(), "color %04x not in color map", want)
	}
	if pos == 0 {
		return b, nil
	}

	moved := make([]uint16, 0, len(b.Palette))
	moved = append(moved, want)
	moved = append(moved, b.Palette[:pos]...)
	moved = append(moved, b.Palette[pos+1:]...)
	b.Palette = moved

	table := make([]byte, 256)
	for i := range table {
		switch {
		case i == pos:
			table[i] = 0
		case i < pos:
			table[i] = byte(i + 1)
		default:
			table[i] = byte(i)
		}
	}
	if err := remap(s.Name(), b, table); err != nil {
		return nil, err
	}
	return b, nil
}

// shiftIndices adds a constant offset to every index, reserving the low
// index range. The color map grows matching blank entries so entry
// positions keep lining up with pixel values.
type shiftIndices struct {
	offset int
}

func (shiftIndices) Name() string { return "shift indices" }

func (s shiftIndices) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkPaletted(s.Name(), b); err != nil {
		return nil, err
	}

	bpp, _ := b.Format.BitsPerPixel()
	if len(b.Palette)+s.offset > 1<<bpp {
		return nil, formatErrorf(s.Name(), "shift by %d overflows %d-bit indices", s.offset, bpp)
	}

	b.Palette = append(make([]uint16, s.offset), b.Palette...)

	table := make([]byte, 256)
	for i := range table {
		table[i] = byte(i + s.offset)
	}
	if err := remap(s.Name(), b, table); err != nil {
		return nil, err
	}
	return b, nil
}

// pruneIndices drops unused color map entries and remaps indices onto the
// compacted map.
type pruneIndices struct{}

func (pruneIndices) Name() string { return "prune indices" }

func (s pruneIndices) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkPaletted(s.Name(), b); err != nil {
		return nil, err
	}

	ix, err := b.Indices()
	if err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}

	var used [256]bool
	for _, v := range ix {
		used[v] = true
	}

	table := make([]byte, 256)
	pruned := make([]uint16, 0, len(b.Palette))
	for i, c := range b.Palette {
		if !used[i] {
			continue
		}
		table[i] = byte(len(pruned))
		pruned = append(pruned, c)
	}
	b.Palette = pruned

	for i, v := range ix {
		ix[i] = table[v]
	}
	if err := b.SetIndices(ix); err != nil {
		return nil, formatErrorf(s.Name(), "%v", err)
	}
	return b, nil
}

// padColorMap pads the color map with blank entries to a fixed count.
type padColorMap struct {
	entries int
}

func (padColorMap) Name() string { return "pad color map" }

func (s padColorMap) Process(b *frame.Buffer) (*frame.Buffer, error) {
	if err := checkPaletted(s.Name(), b); err != nil {
		return nil, err
	}
	if len(b.Palette) > s.entries {
		return nil, formatErrorf(s.Name(), "color map has %d entries, want at most %d", len(b.Palette), s.entries)
	}
	for len(b.Palette) < s.entries {
		b.Palette = append(b.Palette, 0)
	}
	return b, nil
}
