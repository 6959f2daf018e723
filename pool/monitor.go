package pool

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// ErrMonitorBusy is returned by NotifyWhenIdle while a notification is
// already outstanding.
var ErrMonitorBusy = errors.New("pool: idle notification already pending")

type (
	// Monitor reports whether a Pool is idle, and can arrange a one-shot
	// notification when it becomes idle.
	Monitor struct {
		pool    *Pool
		logger  *logiface.Logger[logiface.Event]
		current atomic.Pointer[idleMonitor]
		name    string
	}

	// idleMonitor is a single outstanding notification.
	idleMonitor struct {
		owner      *Monitor
		onIdle     func()
		round      atomic.Pointer[barrierRound]
		generation atomic.Uint64
		poisoned   atomic.Bool
	}

	// barrierRound is one attempt to park every worker at once.
	barrierRound struct {
		barrier    *CyclicBarrier
		generation uint64
	}
)

// NewMonitor returns a Monitor for pool.
func NewMonitor(pool *Pool, opts ...Option) (*Monitor, error) {
	if pool == nil {
		return nil, errors.New("pool: nil pool")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.logger
	if logger == nil {
		logger = pool.logger
	}
	name := cfg.name
	if name == `` {
		name = pool.name
	}
	return &Monitor{pool: pool, logger: logger, name: name}, nil
}

// Name returns the label of the monitored pool.
func (x *Monitor) Name() string { return x.name }

// IsIdleNow reports whether the pool has no running or queued tasks.
func (x *Monitor) IsIdleNow() bool {
	return x.pool.IsIdle()
}

// NotifyWhenIdle calls onIdle exactly once, from an arbitrary goroutine,
// once the pool has drained. onIdle must not block.
func (x *Monitor) NotifyWhenIdle(onIdle func()) error {
	if onIdle == nil {
		panic("pool: nil idle callback")
	}
	m := &idleMonitor{owner: x, onIdle: onIdle}
	if !x.current.CompareAndSwap(nil, m) {
		return ErrMonitorBusy
	}
	m.start(0)
	return nil
}

// CancelIdleMonitor discards any outstanding notification, releasing any
// workers parked on its behalf. Reports whether one was outstanding.
func (x *Monitor) CancelIdleMonitor() bool {
	m := x.current.Swap(nil)
	if m == nil {
		return false
	}
	m.poisoned.Store(true)
	if round := m.round.Load(); round != nil {
		round.barrier.Break()
	}
	return true
}

func (x *idleMonitor) fire() {
	if x.owner.current.CompareAndSwap(x, nil) {
		x.onIdle()
	}
}

func (x *idleMonitor) start(generation uint64) {
	if x.poisoned.Load() {
		return
	}
	if x.owner.pool.IsIdle() {
		x.fire()
		return
	}
	size := x.owner.pool.Size()
	round := &barrierRound{generation: generation}
	round.barrier = NewCyclicBarrier(size, func() { x.tripped(round) })
	x.round.Store(round)
	for range size {
		if err := x.owner.pool.Submit(func() { x.park(round) }); err != nil {
			x.owner.logger.Err().
				Str(`pool`, x.owner.name).
				Err(err).
				Log(`pool: idle monitor abandoned`)
			x.poisoned.Store(true)
			round.barrier.Break()
			return
		}
	}
}

// tripped runs as the barrier action, while every worker is parked.
func (x *idleMonitor) tripped(round *barrierRound) {
	if x.poisoned.Load() {
		return
	}
	if x.owner.pool.QueueLen() == 0 {
		x.fire()
		return
	}
	// work arrived behind the barrier; anything still queued from this
	// round becomes stale
	if x.generation.CompareAndSwap(round.generation, round.generation+1) {
		x.start(round.generation + 1)
	}
}

func (x *idleMonitor) park(round *barrierRound) {
	if x.poisoned.Load() || x.round.Load() != round {
		return
	}
	if _, err := round.barrier.Await(context.Background()); err == nil || x.poisoned.Load() {
		return
	}
	// broken: exactly one party restarts under the next generation
	if x.generation.CompareAndSwap(round.generation, round.generation+1) {
		round.barrier.Break()
		x.owner.logger.Debug().
			Str(`pool`, x.owner.name).
			Uint64(`generation`, round.generation+1).
			Log(`pool: restarting idle barrier`)
		x.start(round.generation + 1)
	}
}
