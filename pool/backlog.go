package pool

import (
	"sync"
)

// backlogChunkSize is the number of tasks per node in the backlog list.
const backlogChunkSize = 64

// backlog is a chunked linked-list FIFO. It is NOT safe for concurrent use;
// the pool's mutex guards it.
type backlog struct {
	head   *backlogChunk
	tail   *backlogChunk
	length int
}

type backlogChunk struct {
	next    *backlogChunk
	tasks   [backlogChunkSize]func()
	readPos int
	pos     int
}

var backlogChunkPool = sync.Pool{
	New: func() any {
		return new(backlogChunk)
	},
}

func newBacklogChunk() *backlogChunk {
	c := backlogChunkPool.Get().(*backlogChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// releaseBacklogChunk clears every slot so pooled chunks do not retain
// closures.
func releaseBacklogChunk(c *backlogChunk) {
	clear(c.tasks[:c.pos])
	c.pos = 0
	c.readPos = 0
	c.next = nil
	backlogChunkPool.Put(c)
}

func (q *backlog) push(task func()) {
	if q.tail == nil {
		q.tail = newBacklogChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		c := newBacklogChunk()
		q.tail.next = c
		q.tail = c
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

func (q *backlog) pop() (func(), bool) {
	if q.length == 0 {
		return nil, false
	}
	if q.head.readPos == len(q.head.tasks) {
		old := q.head
		q.head = old.next
		releaseBacklogChunk(old)
	}
	task := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = nil
	q.head.readPos++
	q.length--
	if q.length == 0 {
		// single chunk left, reuse it from the start
		q.head.pos = 0
		q.head.readPos = 0
		if q.head != q.tail {
			panic("pool: backlog chunk list corrupted")
		}
	}
	return task, true
}

func (q *backlog) len() int {
	return q.length
}
