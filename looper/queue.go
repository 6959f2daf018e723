package looper

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// QueueState classifies the head of a message queue.
type QueueState int

const (
	// QueueEmpty indicates nothing is pending.
	QueueEmpty QueueState = iota
	// TaskDueSoon indicates the head message is due within the lookahead.
	TaskDueSoon
	// TaskDueLong indicates the head message is due well into the future.
	TaskDueLong
	// QueueBarrier indicates the head entry is a synchronisation barrier. It
	// is neither idle nor actionable.
	QueueBarrier
)

func (s QueueState) String() string {
	switch s {
	case QueueEmpty:
		return "EMPTY"
	case TaskDueSoon:
		return "TASK_DUE_SOON"
	case TaskDueLong:
		return "TASK_DUE_LONG"
	case QueueBarrier:
		return "BARRIER"
	default:
		return "UNKNOWN"
	}
}

// message is a queue entry. A non-zero barrier token marks a barrier, which
// has no task and is never dispatched.
type message struct {
	when    time.Time
	task    Task
	seq     uint64
	barrier int
	async   bool
}

func compareMessages(a, b *message) int {
	if c := a.when.Compare(b.when); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// messageQueue is ordered by (when, seq). Any goroutine may enqueue or
// classify; next must only be called by the owner.
type messageQueue struct {
	wake         chan struct{}
	msgs         []*message
	mu           sync.Mutex
	seq          uint64
	barrierToken int
	closed       bool
}

func newMessageQueue() *messageQueue {
	return &messageQueue{wake: make(chan struct{}, 1)}
}

func (q *messageQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *messageQueue) insertLocked(m *message) {
	q.seq++
	m.seq = q.seq
	i, _ := slices.BinarySearchFunc(q.msgs, m, compareMessages)
	q.msgs = slices.Insert(q.msgs, i, m)
}

func (q *messageQueue) enqueue(m *message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrLooperTerminated
	}
	q.insertLocked(m)
	q.mu.Unlock()
	q.signal()
	return nil
}

// remove deletes m if it is still pending.
func (q *messageQueue) remove(m *message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.msgs, m)
	if i < 0 {
		return false
	}
	q.msgs = slices.Delete(q.msgs, i, i+1)
	return true
}

func (q *messageQueue) postBarrier(now time.Time) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrLooperTerminated
	}
	q.barrierToken++
	token := q.barrierToken
	q.insertLocked(&message{when: now, barrier: token})
	q.mu.Unlock()
	return token, nil
}

func (q *messageQueue) removeBarrier(token int) bool {
	if token <= 0 {
		return false
	}
	q.mu.Lock()
	i := slices.IndexFunc(q.msgs, func(m *message) bool { return m.barrier == token })
	if i >= 0 {
		q.msgs = slices.Delete(q.msgs, i, i+1)
	}
	q.mu.Unlock()
	if i < 0 {
		return false
	}
	q.signal()
	return true
}

func (q *messageQueue) close() {
	q.mu.Lock()
	q.closed = true
	clear(q.msgs)
	q.msgs = nil
	q.mu.Unlock()
	q.signal()
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// state classifies the head without mutating the queue.
func (q *messageQueue) state(now time.Time, lookahead time.Duration) QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return QueueEmpty
	}
	head := q.msgs[0]
	switch {
	case head.barrier != 0:
		return QueueBarrier
	case head.when.Sub(now) <= lookahead:
		return TaskDueSoon
	default:
		return TaskDueLong
	}
}

// popReadyLocked removes and returns the next deliverable message. If none
// is ready, wait is how long until one might be, or -1 if only a new post or
// barrier removal can make progress.
func (q *messageQueue) popReadyLocked(now time.Time) (m *message, wait time.Duration) {
	if len(q.msgs) == 0 {
		return nil, -1
	}
	i := 0
	if q.msgs[0].barrier != 0 {
		i = slices.IndexFunc(q.msgs, func(m *message) bool { return m.async })
		if i < 0 {
			return nil, -1
		}
	}
	m = q.msgs[i]
	if d := m.when.Sub(now); d > 0 {
		return nil, d
	}
	q.msgs = slices.Delete(q.msgs, i, i+1)
	return m, 0
}

// next blocks until a message is ready, the queue is closed, or ctx is done.
func (q *messageQueue) next(ctx context.Context) (*message, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrLooperTerminated
		}
		m, wait := q.popReadyLocked(time.Now())
		q.mu.Unlock()
		if m != nil {
			return m, nil
		}

		var timeout <-chan time.Time
		if wait >= 0 {
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			timeout = timer.C
		}

		select {
		case <-q.wake:
		case <-timeout:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
