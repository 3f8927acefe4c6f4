package generation

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of requests with a single consumer.
//
// Close acts as the shutdown sentinel: requests pushed before Close are still
// delivered, after which Pop returns ErrQueueClosed.
type Queue struct {
	mu         sync.Mutex
	items      []Request
	closed     bool
	unfinished int
	wake       chan struct{}
	drained    chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends req. It never blocks. It returns false if the queue is closed.
func (q *Queue) Push(req Request) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, req)
	q.unfinished++
	depth := len(q.items)
	q.mu.Unlock()

	queueDepth.Set(float64(depth))
	q.notify()
	return true
}

// Pop blocks until a request is available. It returns ErrQueueClosed once the
// queue is closed and empty, or the context error if ctx ends first. A done
// ctx wins over pending items, which stay queued.
func (q *Queue) Pop(ctx context.Context) (Request, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Request{}, err
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = Request{}
			q.items = q.items[1:]
			depth := len(q.items)
			q.mu.Unlock()
			queueDepth.Set(float64(depth))
			return req, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Request{}, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Request{}, ctx.Err()
		}
	}
}

// Close marks the end of input. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Done marks one popped request as fully processed.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("generation: Queue.Done called more times than requests were pushed")
	}
	q.unfinished--
	if q.unfinished == 0 && q.drained != nil {
		close(q.drained)
		q.drained = nil
	}
}

// Wait blocks until every pushed request has been marked Done, or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return nil
	}
	if q.drained == nil {
		q.drained = make(chan struct{})
	}
	ch := q.drained
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of requests waiting to be popped.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
