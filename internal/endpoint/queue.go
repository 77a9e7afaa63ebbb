package endpoint

import "sync"

// Queue is the ordered hand-off between the server and whoever consumes
// delivered text. Every access is serialized by one mutex.
type Queue struct {
	mu    sync.Mutex
	items []string
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends s and signals Ready without blocking.
func (q *Queue) Push(s string) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything queued so far, oldest first.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot copies the queued items without removing them.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

// Ready fires at least once after one or more Push calls. Consumers wait on
// it and then Drain.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}
