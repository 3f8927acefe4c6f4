package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"github.com/ekisa-team/samplegen/internal/audio"
	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/ekisa-team/samplegen/internal/generation"
	"github.com/ekisa-team/samplegen/internal/mapsafe"
	"github.com/ekisa-team/samplegen/internal/model"
)

// ErrForeignHandle is returned when a handle was not issued by this generator.
var ErrForeignHandle = errors.New("handle was not created by this generator")

// Handle is a model resolved to a backend, with its generation parameters.
type Handle struct {
	id       string
	provider backend.BackendProvider
	path     string
	device   string
	params   map[string]any
	duration atomic.Uint64
}

// ModelID returns the catalog id.
func (h *Handle) ModelID() string { return h.id }

// Provider returns the backend serving the model.
func (h *Handle) Provider() backend.BackendProvider { return h.provider }

// DurationSeconds returns the clip duration applied to the handle.
func (h *Handle) DurationSeconds() float64 {
	return math.Float64frombits(h.duration.Load())
}

func (h *Handle) setDuration(d float64) {
	h.duration.Store(math.Float64bits(d))
}

// Generator implements generation.Engine on top of the model catalog and
// the backend registry.
type Generator struct {
	backends *backend.Registry
	models   *model.Manager
	logger   *slog.Logger
}

var _ generation.Engine = (*Generator)(nil)

// NewGenerator creates a new generation service.
func NewGenerator(backends *backend.Registry, models *model.Manager, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		backends: backends,
		models:   models,
		logger:   logger,
	}
}

// LoadModel resolves modelID through the catalog, downloads it if needed and
// makes it resident on backends that keep models loaded.
func (g *Generator) LoadModel(ctx context.Context, modelID, device string) (generation.Handle, error) {
	instance, err := g.models.Resolve(ctx, modelID)
	if err != nil {
		return nil, err
	}

	b, ok := g.backends.Get(instance.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, instance.Backend)
	}

	path := instance.Path
	if locator, ok := b.(backend.ModelLocator); ok {
		path, err = locator.ResolveModelPath(instance.Path)
		if err != nil {
			g.models.MarkStatus(modelID, model.ModelStatusFailed, err)
			return nil, fmt.Errorf("locate model %s: %w", modelID, err)
		}
	}

	params := mapsafe.Merge(instance.Config.Params, nil)

	if loader, ok := b.(backend.Loader); ok {
		err := loader.Load(ctx, &backend.LoadRequest{
			ModelID:    modelID,
			ModelPath:  path,
			Device:     device,
			Parameters: params,
		})
		if err != nil {
			g.models.MarkStatus(modelID, model.ModelStatusFailed, err)
			return nil, err
		}
	}
	g.models.MarkStatus(modelID, model.ModelStatusLoaded, nil)

	g.logger.Debug("Model ready", "model_id", modelID, "backend", instance.Backend, "path", path, "device", device)

	return &Handle{
		id:       modelID,
		provider: instance.Backend,
		path:     path,
		device:   device,
		params:   params,
	}, nil
}

// SetGenerationParams sets the clip duration used by later Infer calls.
func (g *Generator) SetGenerationParams(h generation.Handle, durationSeconds float64) {
	if handle, ok := h.(*Handle); ok {
		handle.setDuration(durationSeconds)
	}
}

// Infer runs the backend on prompt and decodes the WAV it returns.
func (g *Generator) Infer(ctx context.Context, h generation.Handle, prompt string) (*audio.Buffer, error) {
	handle, ok := h.(*Handle)
	if !ok {
		return nil, ErrForeignHandle
	}

	b, ok := g.backends.Get(handle.provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, handle.provider)
	}

	resp, err := b.Infer(ctx, &backend.Request{
		ModelID:   handle.id,
		ModelPath: handle.path,
		Device:    handle.device,
		Input:     strings.NewReader(prompt),
		Parameters: mapsafe.Merge(handle.params, map[string]any{
			backend.ParamDuration: handle.DurationSeconds(),
		}),
	})
	if err != nil {
		return nil, err
	}

	buf, err := audio.DecodeWAV(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", handle.provider, err)
	}
	return buf, nil
}
