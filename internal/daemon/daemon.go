// Package daemon wires the control protocol, the generation worker and the
// ops servers into one process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/samplegen/internal/audio"
	"github.com/ekisa-team/samplegen/internal/backend"
	"github.com/ekisa-team/samplegen/internal/backend/audiocraft"
	"github.com/ekisa-team/samplegen/internal/backend/piper"
	"github.com/ekisa-team/samplegen/internal/config"
	"github.com/ekisa-team/samplegen/internal/generation"
	"github.com/ekisa-team/samplegen/internal/model"
	grpcserver "github.com/ekisa-team/samplegen/internal/server/grpc"
	httpserver "github.com/ekisa-team/samplegen/internal/server/http"
	oscserver "github.com/ekisa-team/samplegen/internal/server/osc"
	"github.com/ekisa-team/samplegen/internal/service"
)

// Daemon owns every long-lived component of the process.
type Daemon struct {
	cfg    atomic.Pointer[config.Config]
	logger *slog.Logger

	backends *backend.Registry
	models   *model.Manager
	engine   generation.Engine

	oscConn  net.PacketConn
	httpLis  net.Listener
	grpcLis  net.Listener
	notifier generation.Notifier
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// WithEngine replaces the backend-driven generation engine.
func WithEngine(e generation.Engine) Option {
	return func(d *Daemon) { d.engine = e }
}

// WithOSCConn serves the control protocol on an existing socket.
func WithOSCConn(conn net.PacketConn) Option {
	return func(d *Daemon) { d.oscConn = conn }
}

// WithHTTPListener serves the ops router on an existing listener.
func WithHTTPListener(l net.Listener) Option {
	return func(d *Daemon) { d.httpLis = l }
}

// WithGRPCListener serves the health service on an existing listener.
func WithGRPCListener(l net.Listener) Option {
	return func(d *Daemon) { d.grpcLis = l }
}

// WithNotifier replaces the /audio_generated client.
func WithNotifier(n generation.Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

// New builds the daemon's collaborators from cfg.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.cfg.Store(cfg)

	d.models = model.NewManager(cfg, nil, d.logger)

	if d.engine == nil {
		backends, err := newBackendRegistry(cfg, d.logger)
		if err != nil {
			return nil, err
		}
		d.backends = backends
		d.engine = service.NewGenerator(backends, d.models, d.logger)
	}

	if d.notifier == nil {
		d.notifier = oscserver.NewClient(cfg.OSC.ReplyHost, cfg.OSC.ReplyPort)
	}

	return d, nil
}

func newBackendRegistry(cfg *config.Config, logger *slog.Logger) (*backend.Registry, error) {
	registry := backend.NewRegistry()

	if bc, ok := cfg.Backends[string(backend.BackendProviderAudiocraft)]; ok {
		servers := backend.NewServerManager(backend.WithServerLogger(logger))
		b := audiocraft.NewBackend(audiocraft.Config{
			BinPath:      bc.BinPath,
			Args:         bc.Args,
			Env:          bc.Env,
			ReadyTimeout: seconds(bc.ReadyTimeoutSeconds),
		}, servers, logger)
		if err := registry.Register(b); err != nil {
			return nil, err
		}
	}

	if bc, ok := cfg.Backends[string(backend.BackendProviderPiper)]; ok {
		b, err := piper.NewBackend(bc.BinPath, bc.Env)
		if err != nil {
			return nil, fmt.Errorf("piper backend: %w", err)
		}
		if err := registry.Register(b); err != nil {
			return nil, err
		}
	}

	if len(registry.Providers()) == 0 {
		logger.Warn("No backends configured, every model load will fail")
	}
	return registry, nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg.Load()
}

// ApplyConfig takes a reloaded configuration. The model catalog and output
// encoding follow the new file; listeners, backends and the startup model do not.
func (d *Daemon) ApplyConfig(cfg *config.Config) {
	d.cfg.Store(cfg)
	d.models.UpdateCatalog(cfg)
	d.logger.Info("Configuration applied", "models", len(cfg.Models), "output_dir", cfg.ResolveOutputDir())
}

// Run loads the default model, serves until ctx ends, then drains the queue.
// Requests still queued when the shutdown timeout expires are abandoned.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()
	gen := cfg.Generation

	d.logger.Info("Loading default model", "model_id", gen.DefaultModel, "device", gen.Device)
	mc, err := generation.NewModelContext(ctx, d.engine, gen.DefaultModel, gen.Device, gen.DefaultDuration)
	if err != nil {
		d.closeBackends()
		return err
	}

	queue := generation.NewQueue()
	cancel := &generation.CancelSignal{}
	writer := audio.NewFileWriter(func() audio.Settings { return d.Config().OutputSettings() })

	worker := generation.NewWorker(generation.WorkerConfig{
		Queue:        queue,
		Cancel:       cancel,
		Model:        mc,
		Writer:       writer,
		Notifier:     d.notifier,
		Logger:       d.logger,
		InferTimeout: seconds(gen.TimeoutSeconds),
	})

	dispatcher := oscserver.NewDispatcher(d.logger)
	oscserver.RegisterControl(dispatcher, queue, cancel, d.logger)
	osc := oscserver.NewServer(cfg.OSC.ListenAddr, dispatcher, d.logger)

	health := grpcserver.NewHealthServer(d.logger)
	router := httpserver.NewRouter(httpserver.Deps{
		Status: worker,
		Models: d.models.Registry(),
		Ready:  func() bool { return !queue.Closed() },
		Logger: d.logger,
	})

	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g, gctx := errgroup.WithContext(serveCtx)
	workerDone := make(chan struct{})

	g.Go(func() error {
		if d.oscConn != nil {
			return osc.Serve(gctx, d.oscConn)
		}
		return osc.ListenAndServe(gctx)
	})

	if l, addr := d.httpLis, cfg.Server.HTTPAddr; l != nil || addr != config.Disabled {
		srv := httpserver.NewServer(addr, router, d.logger)
		g.Go(func() error {
			if l != nil {
				return srv.Serve(gctx, l)
			}
			return srv.Run(gctx)
		})
	}

	if l, addr := d.grpcLis, cfg.Server.GRPCAddr; l != nil || addr != config.Disabled {
		g.Go(func() error {
			if l != nil {
				return health.Serve(gctx, l)
			}
			return health.Run(gctx, addr)
		})
	}

	g.Go(func() error {
		defer close(workerDone)
		defer stopServing()

		err := worker.Run(workerCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		health.SetServing(true)

		select {
		case <-ctx.Done():
			d.logger.Info("Shutdown requested, draining queue", "pending", queue.Len())
		case <-gctx.Done():
		}

		health.SetServing(false)
		queue.Close()

		timeout := seconds(gen.ShutdownTimeoutSeconds)
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-workerDone:
		case <-timer.C:
			d.logger.Warn("Drain timed out, abandoning queued requests", "timeout", timeout, "pending", queue.Len())
			stopWorker()
			<-workerDone
		}
		return nil
	})

	err = g.Wait()
	d.closeBackends()

	snap := worker.Snapshot()
	d.logger.Info("Daemon stopped", "completed", snap.Completed, "failed", snap.Failed, "cancelled", snap.Cancelled)
	return err
}

func (d *Daemon) closeBackends() {
	if d.backends == nil {
		return
	}
	if err := d.backends.Close(); err != nil {
		d.logger.Error("Failed to close backends", "error", err)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
