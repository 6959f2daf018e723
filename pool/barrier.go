package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBrokenBarrier is returned by Await when the barrier was reset, a
// waiter gave up, or the barrier action panicked.
var ErrBrokenBarrier = errors.New("pool: broken barrier")

type (
	// CyclicBarrier blocks a fixed number of parties until all have
	// arrived, runs an optional action, releases them, and re-arms.
	CyclicBarrier struct {
		action  func()
		current *barrierGeneration
		mu      sync.Mutex
		parties int
		count   int
	}

	barrierGeneration struct {
		done   chan struct{}
		broken bool
	}
)

// NewCyclicBarrier returns a barrier for parties goroutines. The action, if
// non-nil, is run by the last arriving party before any are released; it
// must not call back into the barrier.
func NewCyclicBarrier(parties int, action func()) *CyclicBarrier {
	if parties < 1 {
		panic(fmt.Sprintf("pool: invalid barrier parties: %d", parties))
	}
	return &CyclicBarrier{
		action:  action,
		parties: parties,
		current: newBarrierGeneration(),
	}
}

func newBarrierGeneration() *barrierGeneration {
	return &barrierGeneration{done: make(chan struct{})}
}

// Await blocks until all parties have arrived. The arrival index counts
// down from parties-1 to 0 (the tripping party).
func (x *CyclicBarrier) Await(ctx context.Context) (int, error) {
	x.mu.Lock()
	g := x.current
	if g.broken {
		x.mu.Unlock()
		return 0, ErrBrokenBarrier
	}
	x.count++
	index := x.parties - x.count
	if index == 0 {
		defer x.mu.Unlock()
		if err := x.runAction(); err != nil {
			x.breakLocked()
			return 0, err
		}
		close(g.done)
		x.count = 0
		x.current = newBarrierGeneration()
		return 0, nil
	}
	x.mu.Unlock()

	select {
	case <-g.done:
		if g.broken {
			return index, ErrBrokenBarrier
		}
		return index, nil
	case <-ctx.Done():
		x.mu.Lock()
		if x.current == g && !g.broken {
			x.breakLocked()
		}
		x.mu.Unlock()
		return index, ctx.Err()
	}
}

// Reset breaks the current generation, releasing waiters with
// [ErrBrokenBarrier], and re-arms the barrier.
func (x *CyclicBarrier) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.current.broken {
		x.breakLocked()
	}
	x.count = 0
	x.current = newBarrierGeneration()
}

// Break breaks the current generation without re-arming. Waiters, and any
// party arriving before the next Reset, receive [ErrBrokenBarrier].
func (x *CyclicBarrier) Break() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.current.broken {
		x.breakLocked()
	}
}

// IsBroken reports whether the current generation is broken.
func (x *CyclicBarrier) IsBroken() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.current.broken
}

// Waiting returns the number of parties currently blocked.
func (x *CyclicBarrier) Waiting() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count
}

func (x *CyclicBarrier) breakLocked() {
	x.current.broken = true
	x.count = 0
	close(x.current.done)
}

func (x *CyclicBarrier) runAction() (err error) {
	if x.action == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: action panicked: %v", ErrBrokenBarrier, r)
		}
	}()
	x.action()
	return nil
}
