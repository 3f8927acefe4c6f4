package backend

import (
	"context"
	"io"
	"time"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	BackendProviderAudiocraft BackendProvider = "audiocraft"
	BackendProviderPiper      BackendProvider = "piper"
)

// Backend defines the core interface for all inference backends.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Infer executes inference and returns complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Loader is an optional interface for backends that keep a model resident
// between requests.
type Loader interface {
	Backend

	// Load makes the requested model resident. On failure the previously
	// loaded model, if any, stays active.
	Load(ctx context.Context, req *LoadRequest) error

	// Loaded returns the id of the resident model, or "" if none.
	Loaded() string
}

// ModelLocator is an optional interface for backends whose model is a single
// file inside the downloaded directory.
type ModelLocator interface {
	// ResolveModelPath returns the file to load from the downloaded directory.
	ResolveModelPath(basePath string) (string, error)
}

// LoadRequest describes a model to make resident.
type LoadRequest struct {
	ModelID    string
	ModelPath  string
	Device     string
	Parameters map[string]any
}

// Request encapsulates all parameters for an inference call.
type Request struct {
	// ModelID is the catalog id of the model.
	ModelID string

	// ModelPath is the path to the model file or directory.
	ModelPath string

	// Device is the compute device hint (auto, cpu, cuda, mps).
	Device string

	// Input is the prompt text.
	Input io.Reader

	// Parameters contains backend-specific inference parameters.
	Parameters map[string]any
}

// Response contains the result of an inference operation.
type Response struct {
	// Output is a WAV stream.
	Output io.Reader

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	Timestamp       time.Time       `json:"timestamp"`
	OutputBytes     int64           `json:"output_bytes"`
	BackendSpecific map[string]any  `json:"backend_specific"`
}

// Well-known request parameters.
const (
	ParamDuration = "duration"
)
