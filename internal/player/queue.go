package player

import (
	"sync"
)

// trackQueue is an unbounded FIFO. Pops are non-blocking; the driver parks
// on wake between attempts so it can promote the popped track under its own
// mutex. Single consumer (the driver goroutine), many producers (command
// handlers).
type trackQueue struct {
	mu    sync.Mutex
	items []Track
	wake  chan struct{}
}

func newTrackQueue() *trackQueue {
	return &trackQueue{wake: make(chan struct{}, 1)}
}

func (q *trackQueue) Put(t Track) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// tryTake pops the head if one is present.
func (q *trackQueue) tryTake() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Track{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// Drain discards all pending items and reports how many were dropped.
func (q *trackQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *trackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Peek copies up to n items from the front without removing them.
func (q *trackQueue) Peek(n int) []Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	out := make([]Track, n)
	copy(out, q.items[:n])
	return out
}
