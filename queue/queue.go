package queue

import (
	"sync/atomic"
)

// Queue is a FIFO of pending items. Len may be read from any goroutine;
// Push, Pop and Peek must be serialized by the owner.
type Queue[T any] struct {
	items atomic.Pointer[[]T]
}

func (q *Queue[T]) Len() int {
	return len(*q.items.Load())
}

func (q *Queue[T]) Peek() (T, bool) {
	items := *q.items.Load()
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[0], true
}

func (q *Queue[T]) Pop() (T, bool) {
	items := *q.items.Load()
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	item := items[0]
	// fresh slice so readers holding the previous backing array are unaffected
	rest := append([]T(nil), items[1:]...)
	q.items.Store(&rest)
	return item, true
}

func (q *Queue[T]) Push(items ...T) {
	current := *q.items.Load()
	next := make([]T, 0, len(current)+len(items))
	next = append(next, current...)
	next = append(next, items...)
	q.items.Store(&next)
}

func New[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	initial := append([]T(nil), items...)
	q.items.Store(&initial)
	return q
}
