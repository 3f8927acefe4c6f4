package piper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/ekisa-team/samplegen/internal/mapsafe"
	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// Backend implements backend.Backend for Piper TTS.
type Backend struct {
	executor *backend.Executor
	tempDir  string
}

// NewBackend creates a new Piper backend. env is added to the child environment.
func NewBackend(binPath string, env map[string]string) (*Backend, error) {
	executor, err := backend.NewExecutor(binPath, defaultTimeout, env)
	if err != nil {
		return nil, err
	}

	return NewBackendWithExecutor(executor), nil
}

// NewBackendWithExecutor creates a Piper backend around an existing executor.
func NewBackendWithExecutor(executor *backend.Executor) *Backend {
	return &Backend{
		executor: executor,
		tempDir:  os.TempDir(),
	}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderPiper
}

// ResolveModelPath picks the first .onnx voice in the model directory.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return basePath, nil
	}

	matches, err := filepath.Glob(filepath.Join(basePath, "*.onnx"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no .onnx voice in %s", backend.ErrModelFileNotFound, basePath)
	}
	return matches[0], nil
}

// Infer synthesizes speech from text.
// Input: text bytes.
// Output: WAV audio bytes.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	// Piper writes to a file, so a temp file is used and read back.
	outputFile := filepath.Join(b.tempDir, "piper_"+uuid.NewString()+".wav")
	defer os.Remove(outputFile)

	args := b.buildArgs(req, outputFile)

	// Piper reads text from stdin
	res, err := b.executor.Execute(ctx, args, req.Input)
	if err != nil {
		return nil, fmt.Errorf("piper: %w", err)
	}

	audioData, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	return &backend.Response{
		Output: bytes.NewReader(audioData),
		Metadata: &backend.ResponseMetadata{
			Provider:    b.Provider(),
			Model:       req.ModelID,
			Timestamp:   time.Now(),
			OutputBytes: int64(len(audioData)),
			BackendSpecific: map[string]any{
				"stderr":  string(res.Stderr),
				"elapsed": res.Elapsed.String(),
				"args":    args,
			},
		},
	}, nil
}

// buildArgs builds Piper command-line arguments.
// Piper has no notion of a target duration; length_scale controls pacing.
func (b *Backend) buildArgs(req *backend.Request, outputFile string) []string {
	args := []string{
		"--model", req.ModelPath,
		"--output_file", outputFile,
	}

	if req.Device == "cuda" {
		args = append(args, "--cuda")
	}

	p := req.Parameters
	if p == nil {
		return args
	}

	if mapsafe.Has(p, "speaker_id") {
		args = append(args, "--speaker", strconv.Itoa(mapsafe.Get(p, "speaker_id", 0)))
	}

	floats := []struct{ key, flag string }{
		{"length_scale", "--length_scale"},
		{"noise_scale", "--noise_scale"},
		{"noise_w", "--noise_w"},
		{"sentence_silence", "--sentence_silence"},
	}
	for _, f := range floats {
		if mapsafe.Has(p, f.key) {
			args = append(args, f.flag, fmt.Sprintf("%.2f", mapsafe.Get(p, f.key, 0.0)))
		}
	}

	return args
}

// Close cleans up resources. Piper does not have any resources to clean up.
func (b *Backend) Close() error {
	return nil
}
