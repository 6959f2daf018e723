package pool

import (
	"testing"
)

func TestBacklog_fifoAcrossChunks(t *testing.T) {
	var q backlog
	var got []int
	const n = backlogChunkSize*3 + 7
	for round := range 2 {
		got = got[:0]
		for i := range n {
			q.push(func() { got = append(got, i) })
		}
		if q.len() != n {
			t.Fatalf("round %d: len = %d", round, q.len())
		}
		for {
			task, ok := q.pop()
			if !ok {
				break
			}
			task()
		}
		if len(got) != n {
			t.Fatalf("round %d: popped %d", round, len(got))
		}
		for i, v := range got {
			if v != i {
				t.Fatalf("round %d: out of order at %d: %d", round, i, v)
			}
		}
	}
}

func TestBacklog_interleaved(t *testing.T) {
	var q backlog
	next, want := 0, 0
	for range 10 {
		for range backlogChunkSize + 1 {
			v := next
			next++
			q.push(func() {
				if v != want {
					t.Fatalf("got %d want %d", v, want)
				}
				want++
			})
		}
		for range backlogChunkSize / 2 {
			task, ok := q.pop()
			if !ok {
				t.Fatal("unexpected empty")
			}
			task()
		}
	}
	for q.len() > 0 {
		task, _ := q.pop()
		task()
	}
	if want != next {
		t.Fatalf("ran %d of %d", want, next)
	}
}
