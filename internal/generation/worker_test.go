package generation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/samplegen/internal/audio"
)

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
		return nil
	}
}

func TestWorker_EndToEnd(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	h.push("rain on a tin roof", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	paths := h.notifier.Paths()
	require.Len(t, paths, 1)
	assert.True(t, filepath.IsAbs(paths[0]))
	assert.True(t, strings.HasSuffix(paths[0], "rain_on_a_tin_roof.wav"), paths[0])
	assert.FileExists(t, paths[0])
	assert.Equal(t, []string{"m1:rain on a tin roof"}, h.engine.inferred())

	snap := h.worker.Snapshot()
	assert.Equal(t, StateTerminated, snap.State)
	assert.Equal(t, uint64(1), snap.Completed)
	assert.Equal(t, paths[0], snap.LastArtifact)
	assert.Equal(t, "m1", snap.ModelID)
	assert.Equal(t, 5.0, snap.DurationSeconds)
}

func TestWorker_FIFO(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	prompts := []string{"first hit", "second hit", "third hit", "fourth hit"}
	for _, p := range prompts {
		h.push(p, 5, "m1")
	}
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	paths := h.notifier.Paths()
	require.Len(t, paths, len(prompts))
	for i, p := range prompts {
		assert.Equal(t, strings.ReplaceAll(p, " ", "_")+".wav", filepath.Base(paths[i]))
	}
}

func TestWorker_ShutdownDrainsThenStops(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	h.push("one", 5, "m1")
	h.push("two", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	assert.Len(t, h.notifier.Paths(), 2)
	assert.NoError(t, h.queue.Wait(testCtx(t)), "every request must be marked done")
	assert.False(t, h.queue.Push(mustRequest(t, "three")))
}

func TestWorker_CancelDropsPendingBatch(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	h.push("dropped", 5, "m2")
	h.cancel.Signal()
	h.cancel.Signal()
	h.push("kept", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	paths := h.notifier.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, "kept.wav", filepath.Base(paths[0]))
	assert.Equal(t, []string{"m1:kept"}, h.engine.inferred())
	assert.Equal(t, 1, h.engine.loadCount(), "a cancelled request must not reconcile")
	assert.Equal(t, uint64(1), h.worker.Snapshot().Cancelled)
}

func TestWorker_CancelDoesNotInterruptInFlight(t *testing.T) {
	e := newFakeEngine()
	e.started = make(chan string, 4)
	e.release = make(chan struct{})
	h := newHarness(t, e)
	h.push("in flight", 5, "m1")
	h.push("next", 5, "m1")
	h.push("after", 5, "m1")
	h.queue.Close()

	done := h.runAsync(testCtx(t))

	assert.Equal(t, "in flight", <-e.started)
	h.cancel.Signal()
	e.release <- struct{}{}

	assert.Equal(t, "after", <-e.started)
	e.release <- struct{}{}

	require.NoError(t, waitDone(t, done))

	paths := h.notifier.Paths()
	require.Len(t, paths, 2)
	assert.Equal(t, "in_flight.wav", filepath.Base(paths[0]))
	assert.Equal(t, "after.wav", filepath.Base(paths[1]))
}

func TestWorker_ModelLoadFailureContinuesWithPreviousModel(t *testing.T) {
	e := newFakeEngine()
	e.loadErr["missing"] = errors.New("unknown model")
	h := newHarness(t, e)
	h.push("wind", 5, "missing")
	h.push("thunder", 5, "m2")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	assert.Equal(t, []string{"m1:wind", "m2:thunder"}, e.inferred())
	assert.Len(t, h.notifier.Paths(), 2)
	assert.Equal(t, "m2", h.worker.Snapshot().ModelID)
}

func TestWorker_InferenceFailureDoesNotStopWorker(t *testing.T) {
	e := newFakeEngine()
	e.inferErr["bad"] = errors.New("cuda out of memory")
	h := newHarness(t, e)
	h.push("bad", 5, "m1")
	h.push("good", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	paths := h.notifier.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, "good.wav", filepath.Base(paths[0]))
	assert.Equal(t, uint64(1), h.worker.Snapshot().Failed)
}

func TestWorker_PanicIsRecovered(t *testing.T) {
	e := newFakeEngine()
	e.panicOn = "boom"
	h := newHarness(t, e)
	h.push("boom", 5, "m1")
	h.push("fine", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	assert.Len(t, h.notifier.Paths(), 1)
	assert.NoError(t, h.queue.Wait(testCtx(t)))
}

func TestWorker_WriteFailureSkipsNotification(t *testing.T) {
	e := newFakeEngine()
	h := newHarness(t, e, func(cfg *WorkerConfig) {
		cfg.Writer = failingWriter{
			inner: audio.NewStaticFileWriter(audio.Settings{Dir: t.TempDir()}),
			fail:  map[string]bool{"unwritable": true},
		}
	})
	h.push("unwritable", 5, "m1")
	h.push("writable", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	paths := h.notifier.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, "writable.wav", filepath.Base(paths[0]))
}

func TestWorker_ProcessReportsStage(t *testing.T) {
	e := newFakeEngine()
	e.inferErr["bad"] = errors.New("nan logits")
	h := newHarness(t, e, func(cfg *WorkerConfig) {
		cfg.Writer = failingWriter{
			inner: audio.NewStaticFileWriter(audio.Settings{Dir: t.TempDir()}),
			fail:  map[string]bool{"unwritable": true},
		}
	})

	err := h.worker.process(testCtx(t), mustRequest(t, "bad"))
	assert.True(t, IsInferenceFailure(err))
	assert.False(t, IsWriteFailure(err))

	err = h.worker.process(testCtx(t), mustRequest(t, "unwritable"))
	assert.True(t, IsWriteFailure(err))
}

func TestWorker_NotifyFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	h.notifier.err = errors.New("connection refused")
	h.push("a", 5, "m1")
	h.push("b", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))
	assert.Equal(t, uint64(2), h.worker.Snapshot().Failed)
	assert.FileExists(t, filepath.Join(h.outDir, "a.wav"))
}

func TestWorker_InferTimeout(t *testing.T) {
	e := newFakeEngine()
	e.waitOnCtx = true
	h := newHarness(t, e, func(cfg *WorkerConfig) { cfg.InferTimeout = 20 * time.Millisecond })

	err := h.worker.process(testCtx(t), mustRequest(t, "slow"))
	require.Error(t, err)
	assert.True(t, IsInferenceFailure(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorker_EmptyStemUsesFallback(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	h.push("!!!", 5, "m1")
	h.queue.Close()

	require.NoError(t, waitDone(t, h.runAsync(testCtx(t))))

	paths := h.notifier.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, fallbackStem+".wav", filepath.Base(paths[0]))
}

func TestWorker_ContextCancelStopsIdleWorker(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	ctx, cancel := context.WithCancel(context.Background())
	done := h.runAsync(ctx)

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
}

func TestWorker_RunTwice(t *testing.T) {
	h := newHarness(t, newFakeEngine())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.runAsync(ctx)

	require.Eventually(t, func() bool { return h.worker.Snapshot().State == StateIdle }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.worker.Run(ctx), ErrWorkerRunning)

	h.queue.Close()
	require.NoError(t, waitDone(t, done))
}
