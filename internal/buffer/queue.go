// Package buffer queues values between a producer that must never block and
// a consumer that drains at its own pace.
package buffer

import "sync/atomic"

// Queue grows up to limit queued values, past that the oldest one is dropped
// and reported. Closing In flushes what is queued and then closes Out.
//
//	q := buffer.NewQueue[task.Result](4096, func(n int64) { slog.Warn("dropped", "total", n) })
//	q.In() <- res
//	res := <-q.Out()
type Queue[T any] struct {
	in      chan T
	out     chan T
	limit   int
	dropped atomic.Int64
	onDrop  func(total int64)
}

// NewQueue starts the queue. onDrop may be nil, it runs on the queue
// goroutine with the number of values dropped so far.
func NewQueue[T any](limit int, onDrop func(total int64)) *Queue[T] {
	q := &Queue[T]{
		in:     make(chan T, 1),
		out:    make(chan T, 1),
		limit:  max(limit, 1),
		onDrop: onDrop,
	}
	go q.run()
	return q
}

func (q *Queue[T]) In() chan<- T   { return q.in }
func (q *Queue[T]) Out() <-chan T  { return q.out }
func (q *Queue[T]) Dropped() int64 { return q.dropped.Load() }

func (q *Queue[T]) run() {
	defer close(q.out)
	var pending ring[T]
	for {
		var out chan<- T
		var next T
		if pending.n > 0 {
			out, next = q.out, pending.peek()
		}
		select {
		case v, ok := <-q.in:
			if !ok {
				for pending.n > 0 {
					q.out <- pending.pop()
				}
				return
			}
			if pending.n >= q.limit {
				pending.pop()
				total := q.dropped.Add(1)
				if q.onDrop != nil {
					q.onDrop(total)
				}
			}
			pending.push(v)
		case out <- next:
			pending.pop()
		}
	}
}

// ring is a FIFO over a circular slice that doubles when full.
type ring[T any] struct {
	buf  []T
	head int
	n    int
}

func (r *ring[T]) push(v T) {
	if r.n == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) peek() T { return r.buf[r.head] }

func (r *ring[T]) pop() T {
	var zero T
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v
}

func (r *ring[T]) grow() {
	buf := make([]T, max(2*len(r.buf), 16))
	for i := range r.n {
		buf[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.buf, r.head = buf, 0
}
