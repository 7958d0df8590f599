package gbavid

import (
	"strings"

	"github.com/bodgit/gbavid/frame"
)

// Stage is one transform step of the encoding pipeline. A stage consumes
// the buffer it is handed and must not retain it after returning.
type Stage interface {
	Name() string
	Process(*frame.Buffer) (*frame.Buffer, error)
}

// resetter is implemented by stages carrying state across frames.
type resetter interface {
	Reset()
}

// CompressedFrame is the fully transformed representation of one source
// frame, produced once and immutable thereafter.
type CompressedFrame struct {
	Data              []byte
	SizeBeforePadding int
	Palette           []uint16
	// Scratch is the decode working-set bound for this frame: the largest
	// input-plus-output size across adjacent stage boundaries, since the
	// device decodes ping-pong inside a single scratch region.
	Scratch uint32
}

// Pipeline applies an ordered list of stages to every frame of a stream.
type Pipeline struct {
	steps      []Stage
	compresses int // index of the entropy stage, -1 if none
	sizes      []int
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{compresses: -1}
}

// AddStep appends a stage. At most one step may be marked as the entropy
// compression stage.
func (p *Pipeline) AddStep(s Stage, compresses bool) error {
	if compresses {
		if p.compresses >= 0 {
			return &ConfigError{Reason: "only a single compression step is allowed"}
		}
		p.compresses = len(p.steps)
	}
	p.steps = append(p.steps, s)
	return nil
}

// Reset clears all per-stream stage state. Call it once at stream start.
func (p *Pipeline) Reset() {
	for _, s := range p.steps {
		if r, ok := s.(resetter); ok {
			r.Reset()
		}
	}
}

// Description returns the ordered list of active stage names, for
// diagnostics only.
func (p *Pipeline) Description() string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return strings.Join(names, ", ")
}

// Process feeds one raw frame through every step in insertion order.
// Per-stage state persists across calls, so frames must be supplied in
// stream order.
func (p *Pipeline) Process(b *frame.Buffer) (*CompressedFrame, error) {
	p.sizes = p.sizes[:0]

	var err error
	for _, s := range p.steps {
		if b, err = s.Process(b); err != nil {
			return nil, err
		}
		p.sizes = append(p.sizes, len(b.Pixels))
	}

	cf := &CompressedFrame{
		Data:              b.Pixels,
		SizeBeforePadding: len(b.Pixels),
		Palette:           b.Palette,
	}
	if n := len(p.steps); n > 1 {
		// The padding stage only grows the payload; the pre-pad size is
		// what the device actually decodes.
		if _, ok := p.steps[n-1].(interface{ Align() int }); ok {
			cf.SizeBeforePadding = p.sizes[n-2]
		}
	}

	for i, n := range p.sizes {
		sum := n
		if i > 0 {
			sum += p.sizes[i-1]
		}
		if uint32(sum) > cf.Scratch {
			cf.Scratch = uint32(sum)
		}
	}

	return cf, nil
}
