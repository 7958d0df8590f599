package gbavid

import (
	"github.com/klauspost/compress/zstd"
)

// Stats accumulates encode diagnostics over a stream. ReferenceBytes is
// what a general-purpose entropy coder achieves on the same processed
// frames, reported alongside the pipeline's own output so a poorly chosen
// stage set is easy to spot in a dry run.
type Stats struct {
	Frames          int
	InputBytes      int
	OutputBytes     int
	ReferenceBytes  int
	DurationSeconds float64

	zenc *zstd.Encoder
}

func newStats(duration float64) *Stats {
	// A zero-option encoder never fails to construct.
	zenc, _ := zstd.NewWriter(nil)
	return &Stats{DurationSeconds: duration, zenc: zenc}
}

func (s *Stats) add(raw []byte, cf *CompressedFrame) {
	s.Frames++
	s.InputBytes += len(raw)
	s.OutputBytes += len(cf.Data) + len(cf.Palette)*2
	if s.zenc != nil {
		s.ReferenceBytes += len(s.zenc.EncodeAll(raw, nil))
	}
}

// Ratio returns the achieved compression ratio against the raw input.
func (s *Stats) Ratio() float64 {
	if s.OutputBytes == 0 {
		return 0
	}
	return float64(s.InputBytes) / float64(s.OutputBytes)
}

// BitRate returns the output bit rate in kB/s.
func (s *Stats) BitRate() float64 {
	if s.DurationSeconds == 0 {
		return 0
	}
	return float64(s.OutputBytes) / 1024 / s.DurationSeconds
}
