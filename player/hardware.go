package player

import (
	"errors"
	"sync"
	"time"
)

// Hardware is the narrow capability surface the decode loop needs from the
// target. Keeping it this small lets the player run against real
// memory-mapped registers on the device and against SimHW in tests.
type Hardware interface {
	// ConfigureTimer arms the frame timer to fire fps times per second.
	ConfigureTimer(fps uint32) error
	// FrameRequested reports whether the timer has fired since the last
	// call, consuming the request flag.
	FrameRequested() bool
	// Elapsed returns the time since the timer was configured.
	Elapsed() time.Duration
	// LoadPalette copies a packed 15-bit color map into palette memory.
	LoadPalette(palette []byte) error
	// Blit copies final frame pixels to the display surface.
	Blit(pixels []byte) error
}

// SimHW is a host-side Hardware implementation. Timer requests are raised
// manually with Tick, or continuously when AutoRequest is set; blits and
// palette loads are captured for inspection.
type SimHW struct {
	// AutoRequest makes FrameRequested always report true, for tests that
	// drive the player flat out.
	AutoRequest bool

	mu       sync.Mutex
	fps      uint32
	start    time.Time
	requests int

	Frames   [][]byte
	Palettes [][]byte
}

// NewSimHW returns an idle simulated device.
func NewSimHW() *SimHW {
	return &SimHW{start: time.Now()}
}

func (s *SimHW) ConfigureTimer(fps uint32) error {
	if fps == 0 {
		return errors.New("player: zero fps")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = fps
	s.start = time.Now()
	return nil
}

// Tick raises one frame request, as the timer interrupt would.
func (s *SimHW) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
}

func (s *SimHW) FrameRequested() bool {
	if s.AutoRequest {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requests == 0 {
		return false
	}
	s.requests--
	return true
}

func (s *SimHW) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.start)
}

func (s *SimHW) LoadPalette(palette []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Palettes = append(s.Palettes, append([]byte(nil), palette...))
	return nil
}

func (s *SimHW) Blit(pixels []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, append([]byte(nil), pixels...))
	return nil
}
