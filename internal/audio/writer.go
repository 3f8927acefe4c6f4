package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ekisa-team/samplegen/internal/xfs"
)

const wavExt = ".wav"

// Settings is the current output configuration read by FileWriter on every write.
type Settings struct {
	Dir      string
	Encoding EncodingOptions
}

// FileWriter normalizes buffers and writes them as WAV files.
type FileWriter struct {
	settings func() Settings
}

// NewFileWriter creates a writer that reads its settings through fn on every call,
// so configuration reloads apply to the next file.
func NewFileWriter(fn func() Settings) *FileWriter {
	return &FileWriter{settings: fn}
}

// NewStaticFileWriter creates a writer with fixed settings.
func NewStaticFileWriter(s Settings) *FileWriter {
	return NewFileWriter(func() Settings { return s })
}

// WriteAudio writes buf to <dir>/<stem>.wav and returns the absolute path.
// An existing file with the same name is replaced.
func (w *FileWriter) WriteAudio(buf *Buffer, stem string) (string, error) {
	s := w.settings()

	if stem == "" {
		return "", fmt.Errorf("write audio: empty file stem")
	}

	dir, err := xfs.EnsureDir(s.Dir)
	if err != nil {
		return "", fmt.Errorf("write audio: output dir: %w", err)
	}

	normalized, err := Normalize(buf, s.Encoding)
	if err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".samplegen-*.tmp")
	if err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeWAV(tmp, normalized); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}

	path := filepath.Join(dir, stem+wavExt)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}

	return path, nil
}
