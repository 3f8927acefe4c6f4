package model

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/ekisa-team/samplegen/internal/config"
	"github.com/ekisa-team/samplegen/internal/config/source"
	"github.com/ekisa-team/samplegen/internal/xfs"
)

// Manager resolves catalog entries into downloaded model instances.
// Models are fetched on first use and cached in the registry.
type Manager struct {
	registry   *Registry
	downloader source.Downloader
	logger     *slog.Logger

	mu         sync.RWMutex
	catalog    map[string]config.ModelConfig
	modelsPath string
}

// NewManager creates a new Manager for the config's model catalog.
func NewManager(cfg *config.Config, downloader source.Downloader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if downloader == nil {
		downloader = source.NewResolver()
	}

	return &Manager{
		registry:   NewRegistry(),
		downloader: downloader,
		logger:     logger,
		catalog:    cfg.Models,
		modelsPath: cfg.ResolveModelsPath(),
	}
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Catalog returns the current model catalog.
func (m *Manager) Catalog() map[string]config.ModelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.catalog
}

// Resolve returns the instance for modelID, downloading it if needed.
func (m *Manager) Resolve(ctx context.Context, modelID string) (*ModelInstance, error) {
	m.mu.RLock()
	modelConfig, ok := m.catalog[modelID]
	modelsPath := m.modelsPath
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, modelID)
	}

	if instance, ok := m.registry.Get(modelID); ok {
		return instance, nil
	}

	modelsPath, err := xfs.EnsureDir(modelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare models directory: %w", err)
	}

	downloadPath, cached, err := m.downloader.Download(ctx, &modelConfig, modelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download model %s into %s: %w", modelID, modelsPath, err)
	}

	instance := NewModelInstance(modelConfig, modelID, downloadPath)
	m.registry.Set(instance)

	m.logger.Info("Model added to registry", "model_id", modelID, "download_path", downloadPath, "cached", cached)
	return instance, nil
}

// MarkStatus records a load outcome for modelID.
func (m *Manager) MarkStatus(modelID string, status ModelStatus, err error) {
	m.registry.Update(modelID, func(mi *ModelInstance) {
		mi.SetStatus(status, err)
	})
}

// UpdateCatalog swaps in a reloaded configuration. Registry entries whose
// catalog entry was removed or changed are dropped and fetched again on next use.
func (m *Manager) UpdateCatalog(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, instance := range m.registry.List() {
		next, ok := cfg.Models[instance.ID]
		if !ok || !reflect.DeepEqual(next, instance.Config) {
			m.registry.Delete(instance.ID)
			m.logger.Info("Model removed from registry", "model_id", instance.ID)
		}
	}

	m.catalog = cfg.Models
	m.modelsPath = cfg.ResolveModelsPath()
}
