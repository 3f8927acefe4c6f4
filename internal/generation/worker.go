package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/samplegen/internal/audio"
	"github.com/ekisa-team/samplegen/internal/xfs"
)

// fallbackStem names artifacts whose prompt sanitizes to nothing.
const fallbackStem = "sample"

// AudioWriter persists generated audio.
type AudioWriter interface {
	// WriteAudio stores buf under the given file stem and returns its absolute path.
	WriteAudio(buf *audio.Buffer, stem string) (string, error)
}

// Notifier announces finished artifacts to the protocol peer.
type Notifier interface {
	AudioGenerated(ctx context.Context, path string) error
}

// WorkerConfig holds the collaborators of a Worker.
type WorkerConfig struct {
	Queue    *Queue
	Cancel   *CancelSignal
	Model    *ModelContext
	Writer   AudioWriter
	Notifier Notifier
	Logger   *slog.Logger

	// InferTimeout bounds a single inference call. Zero means no deadline.
	InferTimeout time.Duration
}

// Worker is the single consumer of the admission queue. It owns the
// ModelContext; nothing else may touch the model while Run is active.
type Worker struct {
	queue        *Queue
	cancel       *CancelSignal
	model        *ModelContext
	writer       AudioWriter
	notifier     Notifier
	logger       *slog.Logger
	inferTimeout time.Duration
	now          func() time.Time

	running  atomic.Bool
	snapshot atomic.Pointer[Snapshot]

	// written only by the worker goroutine
	completed    uint64
	failed       uint64
	cancelled    uint64
	lastArtifact string
}

// NewWorker creates a worker. Run starts it.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		queue:        cfg.Queue,
		cancel:       cfg.Cancel,
		model:        cfg.Model,
		writer:       cfg.Writer,
		notifier:     cfg.Notifier,
		logger:       logger,
		inferTimeout: cfg.InferTimeout,
		now:          time.Now,
	}
	w.publish(StateStarting, "")
	return w
}

// Snapshot returns the last published worker state.
func (w *Worker) Snapshot() Snapshot {
	return *w.snapshot.Load()
}

// Run processes requests until the queue is closed and drained, or ctx ends.
// Closing the queue is the normal way to stop; Run then returns nil.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrWorkerRunning
	}
	defer w.publish(StateTerminated, "")

	w.logger.Info("Worker started", "model_id", w.model.ModelID(), "duration_seconds", w.model.DurationSeconds(), "device", w.model.Device())

	for {
		w.publish(StateIdle, "")

		req, err := w.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			w.logger.Info("Worker stopped, queue drained", "completed", w.completed, "failed", w.failed, "cancelled", w.cancelled)
			return nil
		}
		if err != nil {
			w.logger.Warn("Worker interrupted", "error", err)
			return err
		}

		if err := w.process(ctx, req); err != nil {
			w.logger.Error("Request failed", "request_id", req.ID, "model_id", req.ModelID, "error", err)
		}
		w.queue.Done()
	}
}

// process runs one request through reconcile, inference, write and notify.
func (w *Worker) process(ctx context.Context, req Request) (err error) {
	logger := w.logger.With("request_id", req.ID)

	defer func() {
		if r := recover(); r != nil {
			w.failed++
			requestsTotal.WithLabelValues(outcomePanic).Inc()
			err = fmt.Errorf("panic while processing request: %v", r)
		}
	}()

	logger.Info("Received request",
		"prompt", req.Prompt,
		"duration_seconds", req.DurationSeconds,
		"model_id", req.ModelID,
		"queued_for", w.now().Sub(req.ReceivedAt).Round(time.Millisecond),
	)

	var errs []error
	for i, prompt := range req.batch() {
		if w.cancel.ConsumeAndReset() {
			remaining := len(req.batch()) - i
			w.cancelled += uint64(remaining)
			requestsTotal.WithLabelValues(outcomeCancelled).Add(float64(remaining))
			logger.Info("Generation cancelled", "skipped", remaining)
			break
		}

		if i == 0 {
			w.reconcile(ctx, req, logger)
		}

		if err := w.generate(ctx, req, prompt, logger); err != nil {
			w.failed++
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// reconcile applies the request's model and duration. A failed model load is
// logged and the previous model keeps serving the request.
func (w *Worker) reconcile(ctx context.Context, req Request, logger *slog.Logger) {
	w.publish(StateReconciling, req.ID)

	prev := w.model.ModelID()
	if _, err := w.model.Reconcile(ctx, req.ModelID, req.DurationSeconds); err != nil {
		logger.Warn("Failed to load model, continuing with previous model",
			"requested_model", req.ModelID,
			"model_id", prev,
			"error", err,
		)
		return
	}
	if prev != w.model.ModelID() {
		logger.Info("Model switched", "from", prev, "to", w.model.ModelID())
	}
}

func (w *Worker) generate(ctx context.Context, req Request, prompt string, logger *slog.Logger) error {
	w.publish(StateGenerating, req.ID)
	logger.Info("Generating audio", "prompt", prompt, "model_id", w.model.ModelID())

	start := w.now()

	inferCtx := ctx
	if w.inferTimeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, w.inferTimeout)
		defer cancel()
	}

	buf, err := w.model.engine.Infer(inferCtx, w.model.Handle(), prompt)
	if err == nil && buf == nil {
		err = audio.ErrEmptyBuffer
	}
	if err != nil {
		requestsTotal.WithLabelValues(outcomeInferFailed).Inc()
		return &stageError{stage: StateGenerating, err: err}
	}

	w.publish(StateWriting, req.ID)
	stem := xfs.SanitizeFilename(prompt)
	if stem == "" {
		stem = fallbackStem
	}
	path, err := w.writer.WriteAudio(buf, stem)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeWriteFailed).Inc()
		return &stageError{stage: StateWriting, err: err}
	}

	elapsed := w.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	w.publish(StateNotifying, req.ID)
	if err := w.notifier.AudioGenerated(ctx, path); err != nil {
		requestsTotal.WithLabelValues(outcomeNotifyFailed).Inc()
		return &stageError{stage: StateNotifying, err: fmt.Errorf("notify %s: %w", path, err)}
	}

	w.completed++
	w.lastArtifact = path
	requestsTotal.WithLabelValues(outcomeGenerated).Inc()
	generationDuration.Observe(elapsed.Seconds())
	logger.Info("File generated", "path", path, "elapsed_seconds", math.Round(elapsed.Seconds()*100)/100)

	return nil
}

func (w *Worker) publish(state State, requestID string) {
	s := &Snapshot{
		State:          state,
		QueueDepth:     w.queue.Len(),
		CurrentRequest: requestID,
		Completed:      w.completed,
		Failed:         w.failed,
		Cancelled:      w.cancelled,
		LastArtifact:   w.lastArtifact,
		UpdatedAt:      w.now(),
	}
	if w.model != nil {
		s.ModelID = w.model.ModelID()
		s.DurationSeconds = w.model.DurationSeconds()
		s.Device = w.model.Device()
	}
	w.snapshot.Store(s)
}
