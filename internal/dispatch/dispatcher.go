// Package dispatch serializes tasks onto a single mwc713 session.
//
// The Dispatcher event loop multiplexes:
//  1. task submissions and cancellations, kept in a FIFO queue;
//  2. listener registrations;
//  3. stdout lines of the process, classified into events and routed to
//     listeners and to the single task awaiting its result;
//  4. a ticker expiring task deadlines;
//  5. process exit and context cancellation, failing everything outstanding.
//
// At most one task is awaiting its result at any time. Every failure is
// delivered as a task.Result, nothing panics across the loop.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mwcproject/mwcwallet/internal/buffer"
	"github.com/mwcproject/mwcwallet/internal/event"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/task"
)

// Process is the running wallet. *process.Runner satisfies it.
type Process interface {
	Send(line string) error
	Lines() <-chan string
	Done() <-chan struct{}
	Err() error
}

const (
	// maxBatch bounds how many buffered lines are handled as one batch.
	maxBatch = 256

	defaultListenerQueue = 4096
)

type Dispatcher struct {
	proc       Process
	classifier *event.Classifier
	timeout    time.Duration
	tick       time.Duration
	now        func() time.Time
	queueLimit int

	submitCh   chan *Handle
	cancelCh   chan cancelReq
	listenCh   chan *Subscription
	unlistenCh chan string
	stopped    chan struct{}

	running    atomic.Bool
	inflight   *Handle
	batch      []event.Event
	queue      []*Handle
	listeners  []*Subscription
	// promptOwed is set while the prompt closing the previous command
	// (or the startup banner) has not been seen yet. Output read in that
	// window belongs to the previous command and only reaches listeners.
	promptOwed bool
}

type Option func(*Dispatcher)

// WithTimeout sets the default task deadline, counted from submission.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) { x.timeout = d }
}

// WithTick sets how often deadlines are checked.
func WithTick(d time.Duration) Option {
	return func(x *Dispatcher) { x.tick = d }
}

// WithListenerQueue bounds how many results a subscription holds for a slow
// reader, the oldest are dropped past it.
func WithListenerQueue(n int) Option {
	return func(x *Dispatcher) { x.queueLimit = n }
}

func WithClassifier(c *event.Classifier) Option {
	return func(x *Dispatcher) { x.classifier = c }
}

// WithClock replaces time.Now, for tests only.
func WithClock(now func() time.Time) Option {
	return func(x *Dispatcher) { x.now = now }
}

// FromConfig applies the dispatch section of the configuration.
func FromConfig(cfg model.Dispatch) []Option {
	return []Option{WithTimeout(cfg.Timeout()), WithTick(cfg.TickEvery())}
}

func New(proc Process, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		proc:       proc,
		classifier: event.DefaultClassifier(),
		timeout:    2 * time.Minute,
		tick:       time.Second,
		now:        time.Now,
		queueLimit: defaultListenerQueue,
		submitCh:   make(chan *Handle),
		cancelCh:   make(chan cancelReq),
		listenCh:   make(chan *Subscription),
		unlistenCh: make(chan string),
		stopped:    make(chan struct{}),
		promptOwed: true,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle tracks one submitted task.
type Handle struct {
	id       string
	task     task.Task
	deadline time.Time
	state    atomic.Int32
	result   chan task.Result
}

func (h *Handle) ID() string               { return h.id }
func (h *Handle) Task() task.Task          { return h.task }
func (h *Handle) State() task.State        { return task.State(h.state.Load()) }
func (h *Handle) Done() <-chan task.Result { return h.result }

// Wait blocks until the result arrives or ctx is done.
func (h *Handle) Wait(ctx context.Context) (task.Result, error) {
	select {
	case res := <-h.result:
		return res, nil
	case <-ctx.Done():
		return task.Result{}, ctx.Err()
	}
}

func (h *Handle) finish(state task.State, res task.Result) {
	res.TaskID = h.id
	res.Kind = h.task.Kind()
	h.state.Store(int32(state))
	h.result <- res
}

// Subscription receives the results of a standing listener. Results must be
// drained until the channel is closed.
type Subscription struct {
	id       string
	listener task.Listener
	queue    *buffer.Queue[task.Result]
	d        *Dispatcher
}

func (s *Subscription) ID() string                  { return s.id }
func (s *Subscription) Results() <-chan task.Result { return s.queue.Out() }

// Dropped counts results lost because the reader fell behind.
func (s *Subscription) Dropped() int64 { return s.queue.Dropped() }

// Close removes the listener. Results already queued are still delivered.
func (s *Subscription) Close() {
	select {
	case s.d.unlistenCh <- s.id:
	case <-s.d.stopped:
	}
}

type cancelReq struct {
	id    string
	reply chan bool
}

// Submit queues a task. The command is written as soon as no other task
// awaits its result. Submit fails with model.ErrProcessUnavailable once the
// session is gone; it blocks until Run is running.
func (d *Dispatcher) Submit(t task.Task) (*Handle, error) {
	h := &Handle{
		id:     uuid.NewString(),
		task:   t,
		result: make(chan task.Result, 1),
	}
	timeout := t.Timeout()
	if timeout <= 0 {
		timeout = d.timeout
	}
	h.deadline = d.now().Add(timeout)

	select {
	case d.submitCh <- h:
		return h, nil
	case <-d.stopped:
		return nil, model.ErrProcessUnavailable
	}
}

// Listen registers a standing listener, it sees every event classified after
// Listen returned.
func (d *Dispatcher) Listen(l task.Listener) (*Subscription, error) {
	id := uuid.NewString()
	queue := buffer.NewQueue[task.Result](d.queueLimit, func(total int64) {
		slog.Warn("listener falls behind, dropping its oldest result", "listener_id", id, "kind", l.Kind(), "dropped", total)
	})
	s := &Subscription{
		id:       id,
		listener: l,
		queue:    queue,
		d:        d,
	}
	select {
	case d.listenCh <- s:
		return s, nil
	case <-d.stopped:
		close(s.queue.In())
		return nil, model.ErrProcessUnavailable
	}
}

// Cancel stops a queued or in flight task, its handle receives a cancelled
// result. It reports false for unknown or finished tasks.
func (d *Dispatcher) Cancel(id string) bool {
	req := cancelReq{id: id, reply: make(chan bool, 1)}
	select {
	case d.cancelCh <- req:
		return <-req.reply
	case <-d.stopped:
		return false
	}
}

// Available reports whether the loop is still accepting tasks.
func (d *Dispatcher) Available() bool {
	select {
	case <-d.stopped:
		return false
	default:
		return d.running.Load()
	}
}

// Stopped is closed when Run returned.
func (d *Dispatcher) Stopped() <-chan struct{} {
	return d.stopped
}

// Run is the dispatcher event loop. It returns nil when ctx is cancelled and an
// error wrapping model.ErrProcessUnavailable when the process exited. Either way
// everything outstanding gets a final result and the dispatcher can't be reused.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a dispatcher", "timeout", d.timeout, "tick", d.tick)
	d.running.Store(true)
	defer close(d.stopped)

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	lines := d.proc.Lines()
	for {
		select {
		case <-ctx.Done():
			d.shutdown(ctx, ctx.Err())
			return nil
		case h := <-d.submitCh:
			d.enqueue(ctx, h)
		case req := <-d.cancelCh:
			req.reply <- d.cancel(ctx, req.id)
		case s := <-d.listenCh:
			d.listeners = append(d.listeners, s)
		case id := <-d.unlistenCh:
			d.unlisten(id)
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			d.handleLines(ctx, d.drain(line, lines))
		case <-d.proc.Done():
			if lines != nil {
				for line := range lines {
					d.handleLines(ctx, []string{line})
				}
			}
			err := d.proc.Err()
			slog.ErrorContext(ctx, "mwc713 exited", "error", err)
			d.shutdown(ctx, err)
			if err == nil {
				return model.ErrProcessUnavailable
			}
			return fmt.Errorf("%w: %w", model.ErrProcessUnavailable, err)
		case now := <-ticker.C:
			d.expire(ctx, now)
		}
	}
}

// drain collects lines which are already buffered, so output printed at once
// is seen by Ready as a whole.
func (d *Dispatcher) drain(first string, lines <-chan string) []string {
	batch := []string{first}
	for len(batch) < maxBatch {
		select {
		case line, ok := <-lines:
			if !ok {
				return batch
			}
			batch = append(batch, line)
		default:
			return batch
		}
	}
	return batch
}

func (d *Dispatcher) enqueue(ctx context.Context, h *Handle) {
	slog.DebugContext(ctx, "task queued", "task_id", h.id, "kind", h.task.Kind(), "queued", len(d.queue))
	d.queue = append(d.queue, h)
	d.dispatchNext(ctx)
}

// dispatchNext writes the next queued command unless a task awaits its result.
func (d *Dispatcher) dispatchNext(ctx context.Context) {
	for d.inflight == nil && len(d.queue) > 0 {
		h := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]

		slog.DebugContext(ctx, "sending command", "task_id", h.id, "kind", h.task.Kind(), "command", h.task.LogCommand())
		h.state.Store(int32(task.AwaitingResult))
		if err := d.proc.Send(h.task.Command()); err != nil {
			slog.ErrorContext(ctx, "sending command failed", "task_id", h.id, "error", err)
			h.finish(task.Completed, task.UnavailableResult(h.task.Kind(), err))
			continue
		}
		d.inflight = h
		d.batch = nil
	}
}

func (d *Dispatcher) handleLines(ctx context.Context, lines []string) {
	for _, line := range lines {
		for _, ev := range d.classifier.Classify(line) {
			d.route(ctx, ev)
		}
	}

	if d.inflight == nil || len(d.batch) == 0 || !d.inflight.task.Ready(d.batch) {
		return
	}
	h := d.inflight
	res := h.task.Finalize(d.batch)
	d.promptOwed = len(event.Filter(d.batch, event.Prompt)) == 0
	d.inflight, d.batch = nil, nil
	slog.DebugContext(ctx, "task completed", "task_id", h.id, "kind", h.task.Kind(), "outcome", res.Outcome)
	h.finish(task.Completed, res)
	d.dispatchNext(ctx)
}

func (d *Dispatcher) route(ctx context.Context, ev event.Event) {
	if ev.Kind == event.Prompt && d.promptOwed {
		d.promptOwed = false
		slog.DebugContext(ctx, "prompt of a previous command")
		return
	}
	delivered := false
	for _, s := range d.listeners {
		if !s.listener.Subscribes(ev.Kind) {
			continue
		}
		if res, ok := s.listener.Handle(ev); ok {
			res.TaskID = s.id
			res.Kind = s.listener.Kind()
			s.queue.In() <- res
			delivered = true
		}
	}
	switch {
	case d.promptOwed:
		slog.DebugContext(ctx, "output of a previous command", "kind", ev.Kind, "message", ev.Message)
		return
	case d.inflight != nil:
		d.batch = append(d.batch, ev)
		delivered = true
	}
	if !delivered {
		slog.DebugContext(ctx, "dropping event", "kind", ev.Kind, "message", ev.Message)
	}
}

func (d *Dispatcher) expire(ctx context.Context, now time.Time) {
	if h := d.inflight; h != nil && !now.Before(h.deadline) {
		slog.WarnContext(ctx, "task timed out", "task_id", h.id, "kind", h.task.Kind(), "events", len(d.batch))
		d.inflight, d.batch = nil, nil
		d.promptOwed = true
		h.finish(task.TimedOut, task.TimeoutResult(h.task.Kind()))
	}
	d.queue = slices.DeleteFunc(d.queue, func(h *Handle) bool {
		if now.Before(h.deadline) {
			return false
		}
		slog.WarnContext(ctx, "queued task timed out", "task_id", h.id, "kind", h.task.Kind())
		h.finish(task.TimedOut, task.TimeoutResult(h.task.Kind()))
		return true
	})
	d.dispatchNext(ctx)
}

func (d *Dispatcher) cancel(ctx context.Context, id string) bool {
	if h := d.inflight; h != nil && h.id == id {
		slog.InfoContext(ctx, "in flight task cancelled", "task_id", id)
		d.inflight, d.batch = nil, nil
		d.promptOwed = true
		h.finish(task.Cancelled, task.CancelledResult(h.task.Kind()))
		d.dispatchNext(ctx)
		return true
	}
	idx := slices.IndexFunc(d.queue, func(h *Handle) bool { return h.id == id })
	if idx < 0 {
		return false
	}
	h := d.queue[idx]
	d.queue = slices.Delete(d.queue, idx, idx+1)
	slog.DebugContext(ctx, "queued task cancelled", "task_id", id)
	h.finish(task.Cancelled, task.CancelledResult(h.task.Kind()))
	return true
}

func (d *Dispatcher) unlisten(id string) {
	idx := slices.IndexFunc(d.listeners, func(s *Subscription) bool { return s.id == id })
	if idx < 0 {
		return
	}
	close(d.listeners[idx].queue.In())
	d.listeners = slices.Delete(d.listeners, idx, idx+1)
}

// shutdown delivers exactly one unavailable result to everything outstanding.
func (d *Dispatcher) shutdown(ctx context.Context, cause error) {
	n := len(d.queue) + len(d.listeners)
	if d.inflight != nil {
		d.inflight.finish(task.Completed, task.UnavailableResult(d.inflight.task.Kind(), cause))
		d.inflight, d.batch = nil, nil
		n++
	}
	for _, h := range d.queue {
		h.finish(task.Completed, task.UnavailableResult(h.task.Kind(), cause))
	}
	d.queue = nil
	for _, s := range d.listeners {
		res := task.UnavailableResult(s.listener.Kind(), cause)
		res.TaskID = s.id
		s.queue.In() <- res
		close(s.queue.In())
	}
	d.listeners = nil
	d.running.Store(false)
	slog.DebugContext(ctx, "dispatcher stopped", "outstanding", n, "cause", cause)
}
