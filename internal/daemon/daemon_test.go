package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gosc "github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/samplegen/internal/audio"
	"github.com/ekisa-team/samplegen/internal/config"
	"github.com/ekisa-team/samplegen/internal/envvar"
	"github.com/ekisa-team/samplegen/internal/generation"
	oscserver "github.com/ekisa-team/samplegen/internal/server/osc"
)

type toneHandle string

func (h toneHandle) ModelID() string { return string(h) }

// toneEngine produces a short clip for any known model.
type toneEngine struct {
	mu      sync.Mutex
	known   map[string]bool
	prompts []string
}

func (e *toneEngine) LoadModel(_ context.Context, modelID, _ string) (generation.Handle, error) {
	if !e.known[modelID] {
		return nil, errors.New("unknown model")
	}
	return toneHandle(modelID), nil
}

func (e *toneEngine) SetGenerationParams(generation.Handle, float64) {}

func (e *toneEngine) Infer(_ context.Context, _ generation.Handle, prompt string) (*audio.Buffer, error) {
	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.mu.Unlock()

	buf := &audio.Buffer{Samples: make([]float32, 800), SampleRate: 8000, Channels: 1}
	for i := range buf.Samples {
		buf.Samples[i] = 0.1
	}
	return buf, nil
}

// blockingEngine holds every Infer call until release is closed, ignoring ctx.
type blockingEngine struct {
	toneEngine
	release chan struct{}
}

func (e *blockingEngine) Infer(ctx context.Context, h generation.Handle, prompt string) (*audio.Buffer, error) {
	buf, err := e.toneEngine.Infer(ctx, h, prompt)
	<-e.release
	return buf, err
}

func (e *blockingEngine) inferred() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

type running struct {
	daemon  *Daemon
	client  *oscserver.Client
	replies net.PacketConn
	httpURL string
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, engine generation.Engine, mutate ...func(*config.Config)) *running {
	t.Helper()
	t.Setenv(envvar.SamplegenOutputDir, "")

	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Generation.ShutdownTimeoutSeconds = 5
	for _, m := range mutate {
		m(cfg)
	}

	oscConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	replies, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { replies.Close() })
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d, err := New(cfg,
		WithEngine(engine),
		WithOSCConn(oscConn),
		WithHTTPListener(httpLis),
		WithGRPCListener(grpcLis),
		WithNotifier(oscserver.NewClient("127.0.0.1", replies.LocalAddr().(*net.UDPAddr).Port)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	return &running{
		daemon:  d,
		client:  oscserver.NewClient("127.0.0.1", oscConn.LocalAddr().(*net.UDPAddr).Port),
		replies: replies,
		httpURL: "http://" + httpLis.Addr().String(),
		cancel:  cancel,
		done:    done,
	}
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func (r *running) nextReply(t *testing.T) *gosc.Message {
	t.Helper()
	require.NoError(t, r.replies.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 65535)
	n, _, err := r.replies.ReadFrom(buf)
	require.NoError(t, err)

	packet, err := gosc.ParsePacket(string(buf[:n]))
	require.NoError(t, err)
	msg, ok := packet.(*gosc.Message)
	require.True(t, ok)
	return msg
}

func TestDaemon_GenerateEndToEnd(t *testing.T) {
	engine := &toneEngine{known: map[string]bool{config.DefaultModel: true}}
	r := start(t, engine)

	require.NoError(t, r.client.Generate(context.Background(), "rain on a tin roof", 1, config.DefaultModel))

	msg := r.nextReply(t)
	assert.Equal(t, oscserver.AddressAudioGenerated, msg.Address)
	require.Len(t, msg.Arguments, 1)
	path := msg.Arguments[0].(string)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, "rain_on_a_tin_roof.wav"))

	f, err := os.Open(path)
	require.NoError(t, err)
	buf, err := audio.DecodeWAV(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 800, buf.Frames())

	resp, err := http.Get(r.httpURL + "/status")
	require.NoError(t, err)
	var snap generation.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, config.DefaultModel, snap.ModelID)
	assert.EqualValues(t, 1, snap.Completed)

	r.stop(t)
}

func TestDaemon_ApplyConfigChangesOutputDir(t *testing.T) {
	engine := &toneEngine{known: map[string]bool{config.DefaultModel: true}}
	r := start(t, engine)

	next := config.Default()
	next.Output.Dir = t.TempDir()
	r.daemon.ApplyConfig(next)
	assert.Same(t, next, r.daemon.Config())

	require.NoError(t, r.client.Generate(context.Background(), "door slam", 1, config.DefaultModel))
	msg := r.nextReply(t)
	assert.Equal(t, filepath.Join(next.Output.Dir, "door_slam.wav"), msg.Arguments[0].(string))

	r.stop(t)
}

func TestDaemon_StartupModelFailureIsFatal(t *testing.T) {
	cfg := config.Default()
	d, err := New(cfg, WithEngine(&toneEngine{known: map[string]bool{}}))
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, generation.IsModelLoad(err))
}

func TestDaemon_HealthzDuringServe(t *testing.T) {
	r := start(t, &toneEngine{known: map[string]bool{config.DefaultModel: true}})

	require.Eventually(t, func() bool {
		resp, err := http.Get(r.httpURL + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	r.stop(t)
}

func TestDaemon_DrainTimeoutAbandonsQueuedRequests(t *testing.T) {
	engine := &blockingEngine{
		toneEngine: toneEngine{known: map[string]bool{config.DefaultModel: true}},
		release:    make(chan struct{}),
	}
	r := start(t, engine, func(cfg *config.Config) {
		cfg.Generation.ShutdownTimeoutSeconds = 0.3
	})

	ctx := context.Background()
	require.NoError(t, r.client.Generate(ctx, "a", 1, config.DefaultModel))
	require.Eventually(t, func() bool { return len(engine.inferred()) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, r.client.Generate(ctx, "b", 1, config.DefaultModel))
	require.Eventually(t, func() bool {
		resp, err := http.Get(r.httpURL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(body), "samplegen_queue_depth 1")
	}, 5*time.Second, 20*time.Millisecond)

	r.cancel()
	// Past the drain deadline the worker context is already cancelled.
	time.Sleep(600 * time.Millisecond)
	close(engine.release)

	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, []string{"a"}, engine.inferred())
}
