package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"
)

// ServerManager manages server processes.
type ServerManager struct {
	servers map[string]Process
	spawner Spawner
	logger  *slog.Logger
	mu      sync.RWMutex
}

// Process is a running server process.
type Process interface {
	// Stop kills the process and waits for it to exit.
	Stop() error
	// Exited is closed once the process has exited.
	Exited() <-chan struct{}
}

// Spawner starts server processes.
type Spawner interface {
	Spawn(cfg ServerConfig) (Process, error)
}

// ServerConfig defines how to start and check a backend server.
type ServerConfig struct {
	Env          map[string]string
	Name         string
	BinPath      string
	Host         string
	HealthPath   string
	Args         []string
	Port         int
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// BaseURL returns the server's HTTP base URL.
func (c ServerConfig) BaseURL() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(c.Port))
}

func (c ServerConfig) key() string {
	return fmt.Sprintf("%s-%d", c.Name, c.Port)
}

// ServerManagerOption configures a ServerManager.
type ServerManagerOption func(*ServerManager)

// WithSpawner replaces the process spawner.
func WithSpawner(s Spawner) ServerManagerOption {
	return func(sm *ServerManager) { sm.spawner = s }
}

// WithServerLogger sets the logger.
func WithServerLogger(l *slog.Logger) ServerManagerOption {
	return func(sm *ServerManager) { sm.logger = l }
}

// NewServerManager initializes a ServerManager.
func NewServerManager(opts ...ServerManagerOption) *ServerManager {
	sm := &ServerManager{
		servers: map[string]Process{},
		spawner: ExecSpawner{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// StartServer starts a backend server and blocks until it reports healthy.
func (sm *ServerManager) StartServer(ctx context.Context, cfg ServerConfig) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := cfg.key()
	if _, exists := sm.servers[key]; exists {
		return nil // Already running
	}

	proc, err := sm.spawner.Spawn(cfg)
	if err != nil {
		return fmt.Errorf("backend: failed to start %s server: %w", cfg.Name, err)
	}

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}

	timeout := cfg.ReadyTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = time.Second
	}

	if err := waitForServer(ctx, proc, cfg.BaseURL()+healthPath, timeout, interval); err != nil {
		if stopErr := proc.Stop(); stopErr != nil {
			sm.logger.Error("Failed to kill server process", "name", cfg.Name, "error", stopErr)
		}
		return fmt.Errorf("backend: %s server did not become ready: %w", cfg.Name, err)
	}

	sm.servers[key] = proc

	sm.logger.Info("Server started", "name", cfg.Name, "port", cfg.Port)
	return nil
}

// StopServer terminates a backend server.
func (sm *ServerManager) StopServer(name string, port int) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := ServerConfig{Name: name, Port: port}.key()
	proc, exists := sm.servers[key]
	if !exists {
		return fmt.Errorf("server %s not found", key)
	}

	delete(sm.servers, key)
	if err := proc.Stop(); err != nil {
		sm.logger.Error("Failed to kill server process", "name", name, "error", err)
	}

	sm.logger.Info("Server stopped", "name", name, "port", port)
	return nil
}

// StopAll terminates all running servers.
func (sm *ServerManager) StopAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for key, proc := range sm.servers {
		if err := proc.Stop(); err != nil {
			sm.logger.Error("Failed to kill server process", "server", key, "error", err)
		}
	}
	sm.servers = map[string]Process{}

	sm.logger.Info("All servers stopped")
}

// Running lists the keys of running servers.
func (sm *ServerManager) Running() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]string, 0, len(sm.servers))
	for key := range sm.servers {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

// FreePort asks the kernel for an unused TCP port on the loopback interface.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer waits for a server to be ready.
func waitForServer(ctx context.Context, proc Process, url string, timeout, interval time.Duration) error {
	client := &http.Client{Timeout: 1 * time.Second}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server failed to respond at %s within %v: %w", url, timeout, ctx.Err())
		case <-proc.Exited():
			return ErrServerExited
		case <-ticker.C:
		}
	}
}

// ExecSpawner starts servers with os/exec.
type ExecSpawner struct{}

// Spawn starts the configured binary.
func (ExecSpawner) Spawn(cfg ServerConfig) (Process, error) {
	if info, err := os.Stat(cfg.BinPath); err != nil {
		return nil, err
	} else if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", cfg.BinPath)
	}

	cmd := exec.Command(cfg.BinPath, cfg.Args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	// Apply environment variables if provided
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
}

func (p *execProcess) Exited() <-chan struct{} { return p.exited }

func (p *execProcess) Stop() error {
	select {
	case <-p.exited:
		return nil
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.exited
	return nil
}
