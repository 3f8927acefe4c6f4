// Package backendtest provides in-process stand-ins for backend server processes.
package backendtest

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/ekisa-team/samplegen/internal/backend"
)

// HTTPSpawner serves a handler on the configured port instead of running a binary.
type HTTPSpawner struct {
	// Handler builds the server's handler for each spawn.
	Handler func(cfg backend.ServerConfig) http.Handler
	// Fail makes Spawn return an error for the given model path.
	Fail map[string]error

	mu      sync.Mutex
	spawned []backend.ServerConfig
	stopped []int
}

// Spawn implements backend.Spawner.
func (s *HTTPSpawner) Spawn(cfg backend.ServerConfig) (backend.Process, error) {
	if err := s.Fail[ModelArg(cfg)]; err != nil {
		return nil, err
	}

	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: s.Handler(cfg)}
	p := &process{srv: srv, exited: make(chan struct{}), port: cfg.Port, owner: s}
	go func() {
		_ = srv.Serve(l)
		close(p.exited)
	}()

	s.mu.Lock()
	s.spawned = append(s.spawned, cfg)
	s.mu.Unlock()
	return p, nil
}

// Spawned returns the configs passed to Spawn.
func (s *HTTPSpawner) Spawned() []backend.ServerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.ServerConfig(nil), s.spawned...)
}

// Stopped returns the ports of stopped servers.
func (s *HTTPSpawner) Stopped() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.stopped...)
}

// ModelArg returns the value following --model in the server args.
func ModelArg(cfg backend.ServerConfig) string {
	for i := 0; i+1 < len(cfg.Args); i++ {
		if cfg.Args[i] == "--model" {
			return cfg.Args[i+1]
		}
	}
	return ""
}

type process struct {
	srv    *http.Server
	exited chan struct{}
	port   int
	owner  *HTTPSpawner
	once   sync.Once
}

func (p *process) Exited() <-chan struct{} { return p.exited }

func (p *process) Stop() error {
	var err error
	p.once.Do(func() {
		err = p.srv.Close()
		<-p.exited
		p.owner.mu.Lock()
		p.owner.stopped = append(p.owner.stopped, p.port)
		p.owner.mu.Unlock()
	})
	return err
}
