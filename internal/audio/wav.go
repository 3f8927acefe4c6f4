package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	outputBitDepth      = 16
)

// DecodeWAV reads a PCM WAV stream into a Buffer.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read wav: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrInvalidFormat)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))

	buf := &Buffer{
		Samples:    make([]float32, len(pcm.Data)),
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}
	for i, v := range pcm.Data {
		buf.Samples[i] = float32(v) / scale
	}

	if err := buf.Validate(); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeWAV writes the buffer as 16-bit PCM. Samples are clamped to [-1, 1].
func EncodeWAV(w io.WriteSeeker, buf *Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	const maxInt = 1<<(outputBitDepth-1) - 1
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		data[i] = int(math.Round(float64(clamp(s)) * maxInt))
	}

	enc := wav.NewEncoder(w, buf.SampleRate, outputBitDepth, buf.Channels, wavFormatPCM)
	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// MarshalWAV encodes the buffer into memory. The wav encoder needs to seek,
// so the bytes go through a temporary file.
func MarshalWAV(buf *Buffer) ([]byte, error) {
	f, err := os.CreateTemp("", "samplegen-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := EncodeWAV(f, buf); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case s != s:
		return 0
	}
	return s
}
