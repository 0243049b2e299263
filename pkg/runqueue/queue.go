// Package runqueue provides the FIFO ready queue used by the round-robin scheduler
package runqueue

import (
	"container/list"
	"context"
	"sync"

	"github.com/jzx17/roundrobin/pkg/types"
)

// Queue is an ordered set of ready entries with round-robin re-insertion at the tail.
// Every operation is serialized by a single mutex. An entry can be queued at most once.
type Queue[T comparable] struct {
	mu      sync.Mutex
	entries *list.List
	index   map[T]*list.Element

	// ready receives a token whenever PushTail makes the queue non-empty
	ready chan struct{}
}

// New creates an empty queue
func New[T comparable]() *Queue[T] {
	return &Queue[T]{
		entries: list.New(),
		index:   make(map[T]*list.Element),
		ready:   make(chan struct{}, 1),
	}
}

// PushTail appends v to the tail of the queue
func (q *Queue[T]) PushTail(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[v]; ok {
		return types.ErrDuplicateEntry
	}
	q.index[v] = q.entries.PushBack(v)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// PopHead removes and returns the head of the queue. It never blocks: the boolean is
// false when the queue is empty.
func (q *Queue[T]) PopHead() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.entries.Front()
	if front == nil {
		var zero T
		return zero, false
	}
	v := q.entries.Remove(front).(T)
	delete(q.index, v)
	return v, true
}

// Remove deletes v wherever it sits in the queue and reports whether it was present
func (q *Queue[T]) Remove(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	elem, ok := q.index[v]
	if !ok {
		return false
	}
	q.entries.Remove(elem)
	delete(q.index, v)
	return true
}

// Contains reports whether v is queued
func (q *Queue[T]) Contains(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[v]
	return ok
}

// Len returns the number of queued entries
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// IsEmpty reports whether the queue has no entries
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Snapshot returns the queued entries from head to tail
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.entries.Len())
	for e := q.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	return out
}

// WaitNonEmpty blocks until the queue holds at least one entry or ctx is done.
// The lock is never held while waiting.
func (q *Queue[T]) WaitNonEmpty(ctx context.Context) error {
	for {
		if !q.IsEmpty() {
			return nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
