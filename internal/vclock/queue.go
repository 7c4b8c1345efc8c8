package vclock

import "time"

// entry is one pending action in the virtual clock's queue.
type entry struct {
	deadline time.Duration // offset from the clock's epoch
	seq      uint64        // enqueue order, breaks deadline ties
	action   func()

	// index is the entry's position in the heap, or -1 once it has been
	// popped (fired) or removed (cancelled).
	index int
}

// timerQueue is a min-heap ordered by (deadline, seq). It implements
// container/heap.Interface.
type timerQueue []*entry

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // release the action for GC
	e.index = -1
	*q = old[:n-1]
	return e
}
