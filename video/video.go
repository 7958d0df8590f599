/*
Package video provides the frame source consumed by the encoder.

The encoder only needs strictly sequential access to raw RGB24 frames plus
the stream metadata, so demuxing and decoding of real video files is left
to an external tool; RawSource reads the rawvideo byte stream such a tool
produces, for example

	ffmpeg -i foo.avi -f rawvideo -pix_fmt rgb24 foo.rgb
*/
package video

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Info describes an open video stream.
type Info struct {
	Width      uint32
	Height     uint32
	FPS        uint32
	FrameCount uint32
	Duration   float64
	Codec      string
}

// Source yields raw RGB24 frames in stream order. ReadFrame returns io.EOF
// after the last frame; there is no random access.
type Source interface {
	Info() Info
	ReadFrame() ([]byte, error)
}

// RawSource reads headerless RGB24 frames from an io.Reader.
type RawSource struct {
	r    io.Reader
	c    io.Closer
	info Info
}

// NewRawSource wraps a raw RGB24 byte stream of known geometry. frameCount
// may be zero when the stream length is unknown.
func NewRawSource(r io.Reader, width, height, fps, frameCount uint32) (*RawSource, error) {
	if width == 0 || height == 0 || fps == 0 {
		return nil, errors.New("video: zero width, height or fps")
	}
	info := Info{
		Width:      width,
		Height:     height,
		FPS:        fps,
		FrameCount: frameCount,
		Codec:      "rawvideo",
	}
	if frameCount > 0 {
		info.Duration = float64(frameCount) / float64(fps)
	}
	return &RawSource{r: r, info: info}, nil
}

// OpenRaw opens a raw RGB24 file, deriving the frame count from its size.
func OpenRaw(path string, width, height, fps uint32) (*RawSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	frameSize := int64(width) * int64(height) * 3
	if frameSize == 0 || fi.Size()%frameSize != 0 {
		f.Close()
		return nil, fmt.Errorf("video: %s is not a whole number of %dx%d RGB24 frames", path, width, height)
	}

	s, err := NewRawSource(f, width, height, fps, uint32(fi.Size()/frameSize))
	if err != nil {
		f.Close()
		return nil, err
	}
	s.c = f
	return s, nil
}

// Info returns the stream metadata.
func (s *RawSource) Info() Info {
	return s.info
}

// ReadFrame returns the next frame. The returned slice is freshly
// allocated; ownership passes to the caller.
func (s *RawSource) ReadFrame() ([]byte, error) {
	b := make([]byte, s.info.Width*s.info.Height*3)
	if _, err := io.ReadFull(s.r, b); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return b, nil
}

// Close releases the underlying file, if any.
func (s *RawSource) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}
