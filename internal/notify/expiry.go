package notify

import (
	"container/heap"
	"time"
)

type expiry struct {
	id    string
	at    time.Time
	index int
}

// expiryQueue is a min-heap of expirations keyed by time, with an id index so
// a dismissed or evicted entry can be cancelled in O(log n).
type expiryQueue struct {
	items []*expiry
	byID  map[string]*expiry
}

func newExpiryQueue() *expiryQueue {
	return &expiryQueue{byID: make(map[string]*expiry)}
}

func (q *expiryQueue) Len() int { return len(q.items) }

func (q *expiryQueue) Less(i, j int) bool { return q.items[i].at.Before(q.items[j].at) }

func (q *expiryQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *expiryQueue) Push(x any) {
	e := x.(*expiry)
	e.index = len(q.items)
	q.items = append(q.items, e)
	q.byID[e.id] = e
}

func (q *expiryQueue) Pop() any {
	old := q.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	delete(q.byID, e.id)
	e.index = -1
	return e
}

func (q *expiryQueue) schedule(id string, at time.Time) {
	heap.Push(q, &expiry{id: id, at: at})
}

func (q *expiryQueue) cancel(id string) {
	if e, ok := q.byID[id]; ok {
		heap.Remove(q, e.index)
	}
}

// next returns the earliest pending expiration.
func (q *expiryQueue) next() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].at, true
}

// popDue removes and returns the ids of every expiration at or before now.
func (q *expiryQueue) popDue(now time.Time) []string {
	var ids []string
	for len(q.items) > 0 && !q.items[0].at.After(now) {
		ids = append(ids, heap.Pop(q).(*expiry).id)
	}
	return ids
}
