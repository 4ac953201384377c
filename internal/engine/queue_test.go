package engine

import (
	"errors"
	"testing"
)

func qreq(id string, p Priority) *request {
	return &request{id: id, priority: p}
}

func popAll(t *testing.T, q *requestQueue) []string {
	t.Helper()
	var ids []string
	for {
		r, err := q.PopGated(func() error { return nil })
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if r == nil {
			return ids
		}
		ids = append(ids, r.id)
	}
}

func TestQueue_PriorityOrder(t *testing.T) {
	q := newRequestQueue()
	q.Push(qreq("a", PriorityHigh))
	q.Push(qreq("b", PriorityNormal))
	q.Push(qreq("c", PriorityLow))

	got := popAll(t, q)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dequeue order = %v, want %v", got, want)
		}
	}
}

func TestQueue_PriorityOrderRegardlessOfInsertion(t *testing.T) {
	q := newRequestQueue()
	q.Push(qreq("c", PriorityLow))
	q.Push(qreq("a", PriorityHigh))
	q.Push(qreq("b", PriorityNormal))

	got := popAll(t, q)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dequeue order = %v, want %v", got, want)
		}
	}
}

func TestQueue_FIFOWithinBand(t *testing.T) {
	q := newRequestQueue()
	q.Push(qreq("first", PriorityNormal))
	q.Push(qreq("second", PriorityNormal))
	q.Push(qreq("third", PriorityNormal))

	got := popAll(t, q)
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dequeue order = %v, want %v", got, want)
		}
	}
}

func TestQueue_PushFrontJumpsItsBandOnly(t *testing.T) {
	q := newRequestQueue()
	q.Push(qreq("high", PriorityHigh))
	q.Push(qreq("n1", PriorityNormal))
	q.Push(qreq("n2", PriorityNormal))

	// a requeued normal request goes ahead of other normals but stays
	// behind high priority
	q.PushFront(qreq("requeued", PriorityNormal))

	got := popAll(t, q)
	want := []string{"high", "requeued", "n1", "n2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dequeue order = %v, want %v", got, want)
		}
	}
}

func TestQueue_PopGatedDenialKeepsOrder(t *testing.T) {
	q := newRequestQueue()
	q.Push(qreq("a", PriorityNormal))

	denied := errors.New("denied")
	r, err := q.PopGated(func() error { return denied })
	if r != nil || !errors.Is(err, denied) {
		t.Fatalf("expected denial, got r=%v err=%v", r, err)
	}
	if q.Len() != 1 {
		t.Fatalf("denial must not dequeue, len=%d", q.Len())
	}
}

func TestQueue_PopGatedEmptySkipsGate(t *testing.T) {
	q := newRequestQueue()

	called := false
	r, err := q.PopGated(func() error { called = true; return nil })
	if r != nil || err != nil {
		t.Fatalf("unexpected result: %v %v", r, err)
	}
	if called {
		t.Fatalf("gate must not be consulted while the queue is empty")
	}
}

func TestQueue_Remove(t *testing.T) {
	q := newRequestQueue()
	q.Push(qreq("a", PriorityNormal))
	q.Push(qreq("b", PriorityNormal))

	if _, ok := q.Remove("a"); !ok {
		t.Fatalf("remove a failed")
	}
	if _, ok := q.Remove("a"); ok {
		t.Fatalf("second remove should report missing")
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}
