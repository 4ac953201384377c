package engine

import (
	"context"
	"sync"
	"time"
)

// request is owned by the engine from submission until a terminal event.
type request struct {
	id        string
	text      string
	presetID  string
	priority  Priority
	createdAt time.Time

	textHash string
	cacheKey string

	ctx    context.Context
	cancel context.CancelFunc
}

// requestQueue orders requests by (priority desc, insertion order). The
// mutex is the queue's own exclusion domain: a dispatch removes its item
// before the lock is released, so no two dispatches can claim the same
// request.
type requestQueue struct {
	mu    sync.Mutex
	items []*request
}

func newRequestQueue() *requestQueue {
	return &requestQueue{}
}

// Push inserts behind every request of equal or higher priority (FIFO
// within a band).
func (q *requestQueue) Push(r *request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pos := len(q.items)
	for i, item := range q.items {
		if item.priority < r.priority {
			pos = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = r
}

// PushFront inserts at the front of the request's priority band. Used to
// requeue a dispatch the remote endpoint rate-limited.
func (q *requestQueue) PushFront(r *request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pos := len(q.items)
	for i, item := range q.items {
		if item.priority <= r.priority {
			pos = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = r
}

// PopGated pops the highest-priority request, but only after gate
// approves. With an empty queue the gate is never consulted, so idle
// ticks cost no admission budget. Returns (nil, nil) on an empty queue
// and (nil, err) when the gate denies.
func (q *requestQueue) PopGated(gate func() error) (*request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	if err := gate(); err != nil {
		return nil, err
	}
	r := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	return r, nil
}

// Remove deletes the request with the given id, reporting whether it was
// still queued.
func (q *requestQueue) Remove(id string) (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.id == id {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return item, true
		}
	}
	return nil, false
}

func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
