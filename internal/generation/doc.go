// Package generation serializes audio generation requests onto a single worker.
//
// The package is split by concern:
//
//   - request.go: Request and its validation.
//   - queue.go: unbounded FIFO admission queue with close-as-sentinel and drain waiting.
//   - signal.go: advisory cancellation flag with consume-and-reset.
//   - modelctx.go: ModelContext, the worker-owned model/parameter state and Reconcile.
//   - worker.go: the worker loop (idle → reconciling → generating → writing → notifying).
//   - snapshot.go: read-only state published by the worker for status endpoints.
//   - errors.go: error kinds and IsXxx helpers.
//   - metrics.go: Prometheus instrumentation.
//
// Producers (protocol handlers) only ever Push onto the Queue or Signal the
// CancelSignal. Everything touching the model runs on the worker goroutine.
package generation
