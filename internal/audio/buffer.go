// Package audio holds raw generated audio and turns it into files on disk.
package audio

import (
	"errors"
	"time"
)

// Error definitions for the audio package.
var (
	ErrEmptyBuffer       = errors.New("audio buffer is empty")
	ErrInvalidFormat     = errors.New("invalid audio format")
	ErrUnsupportedFormat = errors.New("unsupported wav encoding")
)

// Buffer is raw audio as interleaved float32 samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Validate checks that the buffer can be encoded.
func (b *Buffer) Validate() error {
	switch {
	case b == nil || len(b.Samples) == 0:
		return ErrEmptyBuffer
	case b.SampleRate <= 0, b.Channels <= 0, len(b.Samples)%b.Channels != 0:
		return ErrInvalidFormat
	}
	return nil
}
