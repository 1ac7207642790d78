package engine

import (
	"container/heap"
	"time"
)

// delayedTask runs once the session clock reaches due.
type delayedTask struct {
	due time.Duration
	seq uint64
	run func()
}

type taskHeap []delayedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(delayedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// taskQueue holds the cosmetic follow-ups of one session (customer removal,
// mood reset). It is driven by the session clock and only touched under the
// session lock, so clearing it on end drops every pending effect at once.
type taskQueue struct {
	h   taskHeap
	seq uint64
}

func (q *taskQueue) schedule(due time.Duration, fn func()) {
	q.seq++
	heap.Push(&q.h, delayedTask{due: due, seq: q.seq, run: fn})
}

// runDue executes, in order, every task due at or before now.
func (q *taskQueue) runDue(now time.Duration) int {
	n := 0
	for q.h.Len() > 0 && q.h[0].due <= now {
		t := heap.Pop(&q.h).(delayedTask)
		t.run()
		n++
	}
	return n
}

func (q *taskQueue) clear() int {
	n := q.h.Len()
	q.h = nil
	return n
}
