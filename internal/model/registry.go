package model

import (
	"slices"
	"strings"
	"sync"
)

// Registry stores downloaded model instances.
type Registry struct {
	models map[string]*ModelInstance
	mu     sync.RWMutex
}

// NewRegistry creates a new model registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*ModelInstance),
	}
}

// Set adds a model instance to the registry.
func (r *Registry) Set(instance *ModelInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[instance.ID] = instance
}

// Get returns the model instance with the given ID.
func (r *Registry) Get(id string) (*ModelInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.models[id]
	return instance, ok
}

// List returns a copy of every model instance, sorted by ID.
func (r *Registry) List() []ModelInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]ModelInstance, 0, len(r.models))
	for _, instance := range r.models {
		instances = append(instances, *instance)
	}
	slices.SortFunc(instances, func(a, b ModelInstance) int {
		return strings.Compare(a.ID, b.ID)
	})

	return instances
}

// Update applies fn to the instance under the registry lock.
func (r *Registry) Update(id string, fn func(*ModelInstance)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.models[id]
	if ok {
		fn(instance)
	}
	return ok
}

// Delete deletes the model instance with the given ID.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.models, id)
}
