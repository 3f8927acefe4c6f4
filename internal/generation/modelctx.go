package generation

import (
	"context"
	"fmt"

	"github.com/ekisa-team/samplegen/internal/audio"
)

// Handle is an opaque reference to a loaded model.
type Handle interface {
	ModelID() string
}

// Engine is the generative model collaborator.
type Engine interface {
	// LoadModel loads modelID onto device. Loading resets generation parameters.
	LoadModel(ctx context.Context, modelID, device string) (Handle, error)

	// SetGenerationParams applies the clip duration to h. It cannot fail.
	SetGenerationParams(h Handle, durationSeconds float64)

	// Infer runs the model on a single prompt. It is not interruptible by the
	// cancellation signal, only by ctx.
	Infer(ctx context.Context, h Handle, prompt string) (*audio.Buffer, error)
}

// ModelContext is the loaded model and its generation parameters.
// It belongs to the worker goroutine and is not safe for concurrent use.
type ModelContext struct {
	engine          Engine
	device          string
	modelID         string
	durationSeconds float64
	handle          Handle
}

// NewModelContext loads the initial model and applies the initial duration.
func NewModelContext(ctx context.Context, engine Engine, modelID, device string, durationSeconds float64) (*ModelContext, error) {
	h, err := engine.LoadModel(ctx, modelID, device)
	if err != nil {
		modelLoadsTotal.WithLabelValues("failure").Inc()
		return nil, &ModelLoadError{ModelID: modelID, Err: err}
	}
	modelLoadsTotal.WithLabelValues("success").Inc()
	engine.SetGenerationParams(h, durationSeconds)

	return &ModelContext{
		engine:          engine,
		device:          device,
		modelID:         modelID,
		durationSeconds: durationSeconds,
		handle:          h,
	}, nil
}

// ModelID returns the loaded model id.
func (m *ModelContext) ModelID() string { return m.modelID }

// DurationSeconds returns the current clip duration.
func (m *ModelContext) DurationSeconds() float64 { return m.durationSeconds }

// Device returns the device models are loaded onto.
func (m *ModelContext) Device() string { return m.device }

// Handle returns the current model handle.
func (m *ModelContext) Handle() Handle { return m.handle }

// Reconcile brings the context in line with the requested model and duration.
//
// The duration is applied first. If the model differs a load is attempted; on
// failure the loaded model and handle are unchanged, the previous handle is
// returned together with a *ModelLoadError, and the caller may keep using it.
func (m *ModelContext) Reconcile(ctx context.Context, modelID string, durationSeconds float64) (Handle, error) {
	if durationSeconds != m.durationSeconds {
		m.engine.SetGenerationParams(m.handle, durationSeconds)
		m.durationSeconds = durationSeconds
	}

	if modelID == m.modelID {
		return m.handle, nil
	}

	h, err := m.engine.LoadModel(ctx, modelID, m.device)
	if err != nil {
		modelLoadsTotal.WithLabelValues("failure").Inc()
		return m.handle, &ModelLoadError{ModelID: modelID, Err: err}
	}
	if h == nil {
		modelLoadsTotal.WithLabelValues("failure").Inc()
		return m.handle, &ModelLoadError{ModelID: modelID, Err: fmt.Errorf("engine returned no handle")}
	}
	modelLoadsTotal.WithLabelValues("success").Inc()

	m.engine.SetGenerationParams(h, m.durationSeconds)
	m.handle = h
	m.modelID = modelID

	return m.handle, nil
}
