package config

import (
	"errors"
	"os"

	"github.com/ekisa-team/samplegen/internal/audio"
	"github.com/ekisa-team/samplegen/internal/envvar"
	"github.com/ekisa-team/samplegen/internal/xfs"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"

	// SourceTypeLocal represents model files already present on disk.
	SourceTypeLocal SourceType = "local"
)

// Disabled turns off an optional listener address.
const Disabled = "off"

// Config holds the main configuration for the application.
type Config struct {
	Version    string                   `json:"version"              yaml:"version"              toml:"version"`
	OSC        OSCConfig                `json:"osc,omitempty"        yaml:"osc,omitempty"        toml:"osc,omitempty"`
	Server     ServerConfig             `json:"server,omitempty"     yaml:"server,omitempty"     toml:"server,omitempty"`
	Generation GenerationConfig         `json:"generation,omitempty" yaml:"generation,omitempty" toml:"generation,omitempty"`
	Output     OutputConfig             `json:"output,omitempty"     yaml:"output,omitempty"     toml:"output,omitempty"`
	Storage    StorageConfig            `json:"storage,omitempty"    yaml:"storage,omitempty"    toml:"storage,omitempty"`
	Backends   map[string]BackendConfig `json:"backends,omitempty"   yaml:"backends,omitempty"   toml:"backends,omitempty"`
	Models     map[string]ModelConfig   `json:"models"               yaml:"models"               toml:"models"`
}

// OSCConfig configures the control protocol endpoints. Read once at startup.
type OSCConfig struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty" toml:"listen_addr,omitempty"`
	ReplyHost  string `json:"reply_host,omitempty"  yaml:"reply_host,omitempty"  toml:"reply_host,omitempty"`
	ReplyPort  int    `json:"reply_port,omitempty"  yaml:"reply_port,omitempty"  toml:"reply_port,omitempty"`
}

// ServerConfig configures the operational listeners. "off" disables one.
type ServerConfig struct {
	HTTPAddr string `json:"http_addr,omitempty" yaml:"http_addr,omitempty" toml:"http_addr,omitempty"`
	GRPCAddr string `json:"grpc_addr,omitempty" yaml:"grpc_addr,omitempty" toml:"grpc_addr,omitempty"`
}

// GenerationConfig holds the initial model state and worker limits.
type GenerationConfig struct {
	DefaultModel           string  `json:"default_model,omitempty"            yaml:"default_model,omitempty"            toml:"default_model,omitempty"`
	DefaultDuration        float64 `json:"default_duration,omitempty"         yaml:"default_duration,omitempty"         toml:"default_duration,omitempty"`
	Device                 string  `json:"device,omitempty"                   yaml:"device,omitempty"                   toml:"device,omitempty"`
	TimeoutSeconds         float64 `json:"timeout_seconds,omitempty"          yaml:"timeout_seconds,omitempty"          toml:"timeout_seconds,omitempty"`
	ShutdownTimeoutSeconds float64 `json:"shutdown_timeout_seconds,omitempty" yaml:"shutdown_timeout_seconds,omitempty" toml:"shutdown_timeout_seconds,omitempty"`
}

// OutputConfig controls where and how audio files are written.
type OutputConfig struct {
	Dir        string  `json:"dir,omitempty"         yaml:"dir,omitempty"         toml:"dir,omitempty"`
	Strategy   string  `json:"strategy,omitempty"    yaml:"strategy,omitempty"    toml:"strategy,omitempty"`
	HeadroomDB float64 `json:"headroom_db,omitempty" yaml:"headroom_db,omitempty" toml:"headroom_db,omitempty"`
	Compressor *bool   `json:"compressor,omitempty"  yaml:"compressor,omitempty"  toml:"compressor,omitempty"`
}

// StorageConfig holds configuration for caching and auto-download.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty" toml:"models_dir,omitempty"`
}

// BackendConfig describes how to run a backend binary.
type BackendConfig struct {
	BinPath             string            `json:"bin_path"                        yaml:"bin_path"                        toml:"bin_path"`
	Args                []string          `json:"args,omitempty"                  yaml:"args,omitempty"                  toml:"args,omitempty"`
	Env                 map[string]string `json:"env,omitempty"                   yaml:"env,omitempty"                   toml:"env,omitempty"`
	ReadyTimeoutSeconds float64           `json:"ready_timeout_seconds,omitempty" yaml:"ready_timeout_seconds,omitempty" toml:"ready_timeout_seconds,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Backend string         `json:"backend"          yaml:"backend"          toml:"backend"`
	Source  SourceConfig   `json:"source"           yaml:"source"           toml:"source"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty" toml:"huggingface,omitempty"`
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"       toml:"local,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"                     toml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"       toml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"      toml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"          toml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"        toml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"        toml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"    toml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty" toml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// LocalSource points at model files on disk.
type LocalSource struct {
	Path string `json:"path" yaml:"path" toml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}
	if m.Source.Local != nil {
		return *m.Source.Local, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
}

// ResolveModelsPath returns the path to the models directory.
// Precedence:
// 1. SAMPLEGEN_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func (c *Config) ResolveModelsPath() string {
	if p := os.Getenv(envvar.SamplegenModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if c.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(c.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(DefaultModelsPath())
}

// ResolveOutputDir returns the output directory, SAMPLEGEN_OUTPUT_DIR first.
func (c *Config) ResolveOutputDir() string {
	if p := os.Getenv(envvar.SamplegenOutputDir); p != "" {
		return xfs.ExpandTilde(p)
	}
	if c.Output.Dir != "" {
		return xfs.ExpandTilde(c.Output.Dir)
	}
	return DefaultOutputDir
}

// OutputSettings converts the output section for the audio writer.
func (c *Config) OutputSettings() audio.Settings {
	compressor := true
	if c.Output.Compressor != nil {
		compressor = *c.Output.Compressor
	}
	strategy, err := audio.ParseStrategy(c.Output.Strategy)
	if err != nil {
		strategy = audio.StrategyLoudness
	}
	return audio.Settings{
		Dir: c.ResolveOutputDir(),
		Encoding: audio.EncodingOptions{
			Strategy:   strategy,
			HeadroomDB: c.Output.HeadroomDB,
			Compressor: compressor,
		},
	}
}
