package generation

import "sync/atomic"

// CancelSignal is an advisory, level-triggered cancellation flag.
//
// Any goroutine may call Signal. Only the worker calls ConsumeAndReset, at
// batch boundaries; an in-flight inference is never interrupted.
type CancelSignal struct {
	set atomic.Bool
}

// Signal raises the flag. Repeated calls before the next consume collapse into one.
func (c *CancelSignal) Signal() {
	if c.set.CompareAndSwap(false, true) {
		cancellationsTotal.Inc()
	}
}

// ConsumeAndReset reports whether the flag was raised and clears it.
func (c *CancelSignal) ConsumeAndReset() bool {
	return c.set.Swap(false)
}

// Pending reports whether a cancellation is waiting to be consumed.
func (c *CancelSignal) Pending() bool {
	return c.set.Load()
}
