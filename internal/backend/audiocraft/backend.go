// Package audiocraft drives a resident audiocraft model server over HTTP.
//
// Each loaded model runs in its own server process started through the
// backend.ServerManager. The server exposes:
//
//	GET  /health    200 once the model is ready
//	POST /generate  {"prompt", "duration", "params"} -> audio/wav body
package audiocraft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/ekisa-team/samplegen/internal/mapsafe"
)

const serverName = "audiocraft"

// Config describes how to run the model server.
type Config struct {
	BinPath      string
	Args         []string
	Env          map[string]string
	Host         string
	ReadyTimeout time.Duration
	// PollInterval is the health check interval. Defaults to one second.
	PollInterval time.Duration
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Prompt   string         `json:"prompt"`
	Duration float64        `json:"duration"`
	Params   map[string]any `json:"params,omitempty"`
}

type instance struct {
	modelID string
	device  string
	cfg     backend.ServerConfig
}

// Backend implements backend.Loader for audiocraft.
type Backend struct {
	cfg     Config
	servers *backend.ServerManager
	client  *http.Client
	logger  *slog.Logger

	mu      sync.RWMutex
	current *instance
}

// NewBackend creates a new audiocraft backend.
func NewBackend(cfg Config, servers *backend.ServerManager, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 5 * time.Minute
	}

	return &Backend{
		cfg:     cfg,
		servers: servers,
		client:  &http.Client{},
		logger:  logger.With("backend", serverName),
	}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderAudiocraft
}

// Loaded returns the resident model id.
func (b *Backend) Loaded() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.current == nil {
		return ""
	}
	return b.current.modelID
}

// Load starts a server for the requested model. The replacement is started
// and health-checked before the previous server is stopped.
func (b *Backend) Load(ctx context.Context, req *backend.LoadRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && b.current.modelID == req.ModelID && b.current.device == req.Device {
		return nil
	}

	port, err := backend.FreePort()
	if err != nil {
		return fmt.Errorf("audiocraft: allocate port: %w", err)
	}

	cfg := backend.ServerConfig{
		Name:         serverName,
		BinPath:      b.cfg.BinPath,
		Host:         b.cfg.Host,
		Port:         port,
		Env:          b.cfg.Env,
		Args:         b.buildArgs(req, port),
		ReadyTimeout: b.cfg.ReadyTimeout,
		PollInterval: b.cfg.PollInterval,
	}

	b.logger.Info("Starting model server", "model_id", req.ModelID, "device", req.Device, "port", port)
	if err := b.servers.StartServer(ctx, cfg); err != nil {
		return fmt.Errorf("audiocraft: load %s: %w", req.ModelID, err)
	}

	prev := b.current
	b.current = &instance{modelID: req.ModelID, device: req.Device, cfg: cfg}

	if prev != nil {
		if err := b.servers.StopServer(prev.cfg.Name, prev.cfg.Port); err != nil {
			b.logger.Warn("Failed to stop previous model server", "model_id", prev.modelID, "error", err)
		}
	}
	return nil
}

func (b *Backend) buildArgs(req *backend.LoadRequest, port int) []string {
	args := append([]string{}, b.cfg.Args...)
	args = append(args,
		"--model", req.ModelPath,
		"--port", strconv.Itoa(port),
	)
	if b.cfg.Host != "" {
		args = append(args, "--host", b.cfg.Host)
	}
	if req.Device != "" {
		args = append(args, "--device", req.Device)
	}
	return args
}

// Infer asks the resident server for a clip and returns the WAV bytes.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	b.mu.RLock()
	current := b.current
	b.mu.RUnlock()

	if current == nil {
		return nil, backend.ErrNoModelLoaded
	}

	prompt, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	params := mapsafe.Merge(req.Parameters, nil)
	delete(params, backend.ParamDuration)

	body, err := json.Marshal(GenerateRequest{
		Prompt:   string(prompt),
		Duration: mapsafe.Get(req.Parameters, backend.ParamDuration, 0.0),
		Params:   params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, current.cfg.BaseURL()+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("audiocraft: generate: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("audiocraft: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audiocraft: generate: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	return &backend.Response{
		Output: bytes.NewReader(data),
		Metadata: &backend.ResponseMetadata{
			Provider:    b.Provider(),
			Model:       current.modelID,
			Timestamp:   time.Now(),
			OutputBytes: int64(len(data)),
			BackendSpecific: map[string]any{
				"device": current.device,
				"port":   current.cfg.Port,
			},
		},
	}, nil
}

// Close stops the resident server.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil
	}
	err := b.servers.StopServer(b.current.cfg.Name, b.current.cfg.Port)
	b.current = nil
	return err
}
