// Package source materializes model files from their configured origin.
package source

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/ekisa-team/samplegen/internal/config"
)

// Downloader fetches a model into targetDir and returns its local path.
// cached reports whether an existing copy was reused.
type Downloader interface {
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (path string, cached bool, err error)
}

// CommandFunc runs an external command and returns its combined output.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Resolver picks the downloader matching a model's source type.
type Resolver struct {
	downloaders map[config.SourceType]Downloader
}

// NewResolver returns a resolver with the built-in downloaders.
func NewResolver() *Resolver {
	return &Resolver{
		downloaders: map[config.SourceType]Downloader{
			config.SourceTypeHuggingFace: &HuggingFaceDownloader{},
			config.SourceTypeLocal:       &LocalDownloader{},
		},
	}
}

// Register replaces the downloader for a source type.
func (r *Resolver) Register(t config.SourceType, d Downloader) {
	r.downloaders[t] = d
}

// Download resolves the model's source and delegates to its downloader.
func (r *Resolver) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	d, ok := r.downloaders[src.Type()]
	if !ok {
		return "", false, fmt.Errorf("no downloader for source type %q", src.Type())
	}

	return d.Download(ctx, modelConfig, targetDir)
}
