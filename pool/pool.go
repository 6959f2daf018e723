// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrInvalidSize is returned by New for a size below one.
	ErrInvalidSize = errors.New("pool: size must be at least 1")
)

// Pool is a fixed-size worker pool with an unbounded FIFO backlog.
type Pool struct {
	logger  *logiface.Logger[logiface.Event]
	cond    *sync.Cond
	done    chan struct{}
	backlog backlog
	name    string
	group   errgroup.Group
	mu      sync.Mutex
	size    int
	active  int
	closed  bool
}

// New starts size workers.
func New(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	x := &Pool{
		logger: cfg.logger,
		done:   make(chan struct{}),
		name:   cfg.name,
		size:   size,
	}
	if x.name == `` {
		x.name = `pool`
	}
	x.cond = sync.NewCond(&x.mu)
	for range size {
		x.group.Go(x.worker)
	}
	go func() {
		_ = x.group.Wait()
		close(x.done)
	}()
	return x, nil
}

// Submit enqueues task.
func (x *Pool) Submit(task func()) error {
	if task == nil {
		panic("pool: nil task")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrPoolClosed
	}
	x.backlog.push(task)
	x.cond.Signal()
	return nil
}

// Size returns the number of workers.
func (x *Pool) Size() int { return x.size }

// ActiveCount returns the number of workers running a task.
func (x *Pool) ActiveCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.active
}

// QueueLen returns the number of tasks waiting for a worker.
func (x *Pool) QueueLen() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.backlog.len()
}

// IsIdle reports whether no task is running or queued, as one snapshot.
func (x *Pool) IsIdle() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.active == 0 && x.backlog.len() == 0
}

// Shutdown stops accepting tasks and waits for the backlog to drain.
func (x *Pool) Shutdown(ctx context.Context) error {
	x.mu.Lock()
	x.closed = true
	x.cond.Broadcast()
	x.mu.Unlock()
	select {
	case <-x.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (x *Pool) Close() error {
	return x.Shutdown(context.Background())
}

func (x *Pool) worker() error {
	for {
		x.mu.Lock()
		for x.backlog.len() == 0 && !x.closed {
			x.cond.Wait()
		}
		task, ok := x.backlog.pop()
		if !ok {
			x.mu.Unlock()
			return nil
		}
		x.active++
		x.mu.Unlock()

		x.run(task)

		x.mu.Lock()
		x.active--
		x.mu.Unlock()
	}
}

func (x *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Str(`pool`, x.name).
				Any(`panic`, r).
				Log(`pool: task panicked`)
		}
	}()
	task()
}
