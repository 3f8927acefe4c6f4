package model

import (
	"time"

	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/ekisa-team/samplegen/internal/config"
)

// ModelStatus is the current loading status of a model.
type ModelStatus string

const (
	// ModelStatusUnloaded indicates that the model is on disk but not resident.
	ModelStatusUnloaded ModelStatus = "unloaded"

	// ModelStatusLoaded indicates that the model is loaded.
	ModelStatusLoaded ModelStatus = "loaded"

	// ModelStatusFailed indicates that the model failed to load.
	ModelStatusFailed ModelStatus = "failed"
)

// ModelInstance represents a downloaded model profile.
type ModelInstance struct {
	Config   config.ModelConfig      `json:"config"`
	LoadedAt *time.Time              `json:"loaded_at,omitempty"`
	ID       string                  `json:"id"`
	Backend  backend.BackendProvider `json:"backend"`
	Path     string                  `json:"-"`
	Status   ModelStatus             `json:"status"`
	Error    string                  `json:"error,omitempty"`
}

// NewModelInstance creates a new model instance.
func NewModelInstance(cfg config.ModelConfig, id, path string) *ModelInstance {
	return &ModelInstance{
		ID:      id,
		Path:    path,
		Config:  cfg,
		Backend: backend.BackendProvider(cfg.Backend),
		Status:  ModelStatusUnloaded,
	}
}

// SetStatus sets the status of the model instance.
func (mi *ModelInstance) SetStatus(status ModelStatus, err error) {
	mi.Status = status
	mi.Error = ""
	if err != nil {
		mi.Error = err.Error()
	}
	if status == ModelStatusLoaded {
		now := time.Now()
		mi.LoadedAt = &now
	}
}
