// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// Task is a unit of work run on the looper goroutine. A returned error
	// is delivered to whoever dispatched the task: the caller of
	// [Looper.DispatchNext], or the logger when dispatched by [Looper.Run].
	Task func() error

	// CancelFunc removes a delayed message. It reports whether the message
	// was still pending, i.e. it will now never run.
	CancelFunc func() bool

	// Looper is a single-owner message loop. See the package docs.
	Looper struct {
		queue     *messageQueue
		logger    *logiface.Logger[logiface.Event]
		done      chan struct{}
		state     fastState
		owner     atomic.Uint64
		tid       atomic.Int64
		lookahead time.Duration
	}
)

// New creates a Looper in [StateAwake]. Messages may be posted before Run.
func New(opts ...Option) (*Looper, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Looper{
		queue:     newMessageQueue(),
		logger:    cfg.logger,
		done:      make(chan struct{}),
		lookahead: cfg.lookahead,
	}, nil
}

// Run locks the calling goroutine to its OS thread, becomes the owner, and
// dispatches messages until Shutdown is called or ctx is done. Errors
// returned by top-level messages are logged and do not stop the loop.
//
// Run returns nil after Shutdown, or ctx.Err() if the context ended it.
func (l *Looper) Run(ctx context.Context) error {
	if l.IsCurrentThread() {
		return ErrReentrantRun
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateRunning {
			return ErrLooperRunning
		}
		return ErrLooperTerminated
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.owner.Store(goroutineID())
	l.tid.Store(int64(osThreadID()))
	defer func() {
		l.owner.Store(0)
		l.tid.Store(0)
		l.queue.close()
		l.state.Store(StateTerminated)
		close(l.done)
		l.logger.Debug().Log(`looper: stopped`)
	}()

	l.logger.Debug().
		Int64(`tid`, l.tid.Load()).
		Log(`looper: running`)

	for {
		m, err := l.queue.next(ctx)
		if err != nil {
			if errors.Is(err, ErrLooperTerminated) {
				return nil
			}
			return err
		}
		if err := l.dispatch(m); err != nil {
			l.logger.Err().
				Err(err).
				Log(`looper: unhandled error from dispatched message`)
		}
	}
}

// Shutdown stops accepting messages, discards pending ones, and waits for
// Run to return. Calling Shutdown before Run terminates the looper
// immediately.
func (l *Looper) Shutdown(ctx context.Context) error {
	if l.IsCurrentThread() {
		return ErrShutdownFromLooper
	}
	for {
		switch l.state.Load() {
		case StateAwake:
			if !l.state.TryTransition(StateAwake, StateTerminated) {
				continue
			}
			l.queue.close()
			close(l.done)
			return nil
		case StateRunning:
			if !l.state.TryTransition(StateRunning, StateTerminating) {
				continue
			}
			l.queue.close()
		case StateTerminated:
			return ErrLooperTerminated
		}
		select {
		case <-l.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close is Shutdown without a deadline.
func (l *Looper) Close() error {
	return l.Shutdown(context.Background())
}

// Done is closed once the looper has terminated.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// State returns the current lifecycle state.
func (l *Looper) State() LooperState {
	return l.state.Load()
}

// IsCurrentThread reports whether the caller is the owner goroutine.
func (l *Looper) IsCurrentThread() bool {
	id := l.owner.Load()
	return id != 0 && goroutineID() == id
}

// ThreadID returns the OS thread ID Run is locked to, or 0 if not running
// or not supported on this platform.
func (l *Looper) ThreadID() int {
	return int(l.tid.Load())
}

// Len returns the number of pending entries, including barriers.
func (l *Looper) Len() int {
	return l.queue.len()
}

// QueueState classifies the head of the queue. Safe from any goroutine.
func (l *Looper) QueueState() QueueState {
	return l.queue.state(time.Now(), l.lookahead)
}

// Post enqueues task to run as soon as possible.
func (l *Looper) Post(task Task) error {
	_, err := l.post(task, time.Now(), false)
	return err
}

// PostAsync is Post for a message that is not held back by barriers.
func (l *Looper) PostAsync(task Task) error {
	_, err := l.post(task, time.Now(), true)
	return err
}

// PostDelayed enqueues task to run no sooner than delay from now.
func (l *Looper) PostDelayed(task Task, delay time.Duration) (CancelFunc, error) {
	return l.post(task, time.Now().Add(delay), false)
}

// PostAsyncDelayed is PostDelayed for a message that is not held back by
// barriers.
func (l *Looper) PostAsyncDelayed(task Task, delay time.Duration) (CancelFunc, error) {
	return l.post(task, time.Now().Add(delay), true)
}

// PostAt enqueues task to run no sooner than when.
func (l *Looper) PostAt(task Task, when time.Time) (CancelFunc, error) {
	return l.post(task, when, false)
}

// PostAsyncAt is PostAt for a message that is not held back by barriers.
func (l *Looper) PostAsyncAt(task Task, when time.Time) (CancelFunc, error) {
	return l.post(task, when, true)
}

func (l *Looper) post(task Task, when time.Time, async bool) (CancelFunc, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if !l.state.acceptsWork() {
		return nil, ErrLooperTerminated
	}
	m := &message{when: when, task: task, async: async}
	if err := l.queue.enqueue(m); err != nil {
		return nil, err
	}
	return func() bool { return l.queue.remove(m) }, nil
}

// PostSyncBarrier inserts a barrier at the current time and returns its
// token.
func (l *Looper) PostSyncBarrier() (int, error) {
	if !l.state.acceptsWork() {
		return 0, ErrLooperTerminated
	}
	return l.queue.postBarrier(time.Now())
}

// RemoveSyncBarrier removes the barrier identified by token.
func (l *Looper) RemoveSyncBarrier(token int) bool {
	return l.queue.removeBarrier(token)
}

// DispatchNext blocks until the next deliverable message is ready, then runs
// it on the calling (owner) goroutine and returns its error. A panic is
// returned as a [*PanicError]. Returns ctx.Err() if ctx ends first.
func (l *Looper) DispatchNext(ctx context.Context) error {
	if !l.IsCurrentThread() {
		return ErrNotOwner
	}
	m, err := l.queue.next(ctx)
	if err != nil {
		return err
	}
	return l.dispatch(m)
}

// RunSync runs task on the looper and waits for it to complete, returning
// its error. When called from the owner, task runs inline.
func (l *Looper) RunSync(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if l.IsCurrentThread() {
		return call(task)
	}

	result := make(chan error, 1)
	if err := l.Post(func() error {
		result <- call(task)
		return nil
	}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrLooperTerminated
		}
	}
}

func (l *Looper) dispatch(m *message) error {
	return call(m.task)
}

func call(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task()
}
