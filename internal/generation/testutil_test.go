package generation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ekisa-team/samplegen/internal/audio"
)

type fakeHandle struct {
	id       string
	duration float64
}

func (h *fakeHandle) ModelID() string { return h.id }

// fakeEngine is an in-memory Engine that records calls.
type fakeEngine struct {
	mu        sync.Mutex
	loads     []string
	params    []float64
	prompts   []string
	loadErr   map[string]error
	inferErr  map[string]error
	panicOn   string
	started   chan string
	release   chan struct{}
	waitOnCtx bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loadErr:  map[string]error{},
		inferErr: map[string]error{},
	}
}

func (e *fakeEngine) LoadModel(ctx context.Context, modelID, device string) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads = append(e.loads, modelID)
	if err := e.loadErr[modelID]; err != nil {
		return nil, err
	}
	return &fakeHandle{id: modelID}, nil
}

func (e *fakeEngine) SetGenerationParams(h Handle, durationSeconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h.(*fakeHandle).duration = durationSeconds
	e.params = append(e.params, durationSeconds)
}

func (e *fakeEngine) Infer(ctx context.Context, h Handle, prompt string) (*audio.Buffer, error) {
	if e.started != nil {
		e.started <- prompt
	}
	if e.release != nil {
		<-e.release
	}
	if e.waitOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.prompts = append(e.prompts, h.ModelID()+":"+prompt)
	if prompt == e.panicOn && prompt != "" {
		panic("model exploded")
	}
	if err := e.inferErr[prompt]; err != nil {
		return nil, err
	}
	return tone(), nil
}

func (e *fakeEngine) loadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.loads)
}

func (e *fakeEngine) inferred() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

func tone() *audio.Buffer {
	b := &audio.Buffer{Samples: make([]float32, 800), SampleRate: 16000, Channels: 1}
	for i := range b.Samples {
		b.Samples[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return b
}

// recordingNotifier stores announced paths.
type recordingNotifier struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (n *recordingNotifier) AudioGenerated(ctx context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.paths = append(n.paths, path)
	return nil
}

func (n *recordingNotifier) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// failingWriter rejects stems listed in fail and records the rest.
type failingWriter struct {
	inner *audio.FileWriter
	fail  map[string]bool
}

func (w failingWriter) WriteAudio(buf *audio.Buffer, stem string) (string, error) {
	if w.fail[stem] {
		return "", errors.New("disk full")
	}
	return w.inner.WriteAudio(buf, stem)
}

type harness struct {
	t        *testing.T
	engine   *fakeEngine
	queue    *Queue
	cancel   *CancelSignal
	notifier *recordingNotifier
	worker   *Worker
	outDir   string
}

func newHarness(t *testing.T, engine *fakeEngine, opts ...func(*WorkerConfig)) *harness {
	t.Helper()
	model, err := NewModelContext(context.Background(), engine, "m1", "cpu", 5)
	if err != nil {
		t.Fatalf("initial model: %v", err)
	}
	h := &harness{
		t:        t,
		engine:   engine,
		queue:    NewQueue(),
		cancel:   &CancelSignal{},
		notifier: &recordingNotifier{},
		outDir:   t.TempDir(),
	}
	cfg := WorkerConfig{
		Queue:    h.queue,
		Cancel:   h.cancel,
		Model:    model,
		Writer:   audio.NewStaticFileWriter(audio.Settings{Dir: h.outDir, Encoding: audio.DefaultEncodingOptions()}),
		Notifier: h.notifier,
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.worker = NewWorker(cfg)
	return h
}

func (h *harness) push(prompt string, duration float64, modelID string) Request {
	h.t.Helper()
	req, err := NewRequest(prompt, duration, modelID)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if !h.queue.Push(req) {
		h.t.Fatalf("push rejected")
	}
	return req
}

// runAsync starts the worker and returns a channel receiving Run's result.
func (h *harness) runAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()
	return done
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
