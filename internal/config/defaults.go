package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Defaults used when the configuration leaves a field unset.
const (
	DefaultOSCListenAddr          = "0.0.0.0:8000"
	DefaultOSCReplyHost           = "127.0.0.1"
	DefaultOSCReplyPort           = 9000
	DefaultHTTPAddr               = "127.0.0.1:8080"
	DefaultGRPCAddr               = "127.0.0.1:9090"
	DefaultModel                  = "facebook/audiogen-medium"
	DefaultDuration               = 5.0
	DefaultDevice                 = "auto"
	DefaultShutdownTimeoutSeconds = 120.0
	DefaultOutputDir              = "generated_audio"
	DefaultBackend                = "audiocraft"
)

// Default returns a configuration that serves the default model through the audiocraft backend.
func Default() *Config {
	cfg := &Config{
		Version: "1",
		Models: map[string]ModelConfig{
			DefaultModel: {
				Backend: DefaultBackend,
				Source: SourceConfig{
					HuggingFace: &HuggingFaceSource{Repo: DefaultModel},
				},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.OSC.ListenAddr == "" {
		cfg.OSC.ListenAddr = DefaultOSCListenAddr
	}
	if cfg.OSC.ReplyHost == "" {
		cfg.OSC.ReplyHost = DefaultOSCReplyHost
	}
	if cfg.OSC.ReplyPort == 0 {
		cfg.OSC.ReplyPort = DefaultOSCReplyPort
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Generation.DefaultModel == "" {
		cfg.Generation.DefaultModel = DefaultModel
	}
	if cfg.Generation.DefaultDuration <= 0 {
		cfg.Generation.DefaultDuration = DefaultDuration
	}
	if cfg.Generation.Device == "" {
		cfg.Generation.Device = DefaultDevice
	}
	if cfg.Generation.ShutdownTimeoutSeconds <= 0 {
		cfg.Generation.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Models == nil {
		cfg.Models = map[string]ModelConfig{}
	}
	if cfg.Backends == nil {
		cfg.Backends = map[string]BackendConfig{}
	}
}

// DefaultConfigPath returns the default path for the samplegen config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "samplegen", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "samplegen")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "samplegen")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "samplegen")
		}
		return filepath.Join(home, ".config", "samplegen")
	}
}

// DefaultModelsPath returns the default path for the samplegen models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "samplegen", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "samplegen", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "samplegen", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "samplegen", "models")
		}
		return filepath.Join(home, ".cache", "samplegen", "models")
	}
}
