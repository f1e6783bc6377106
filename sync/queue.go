package sync

import (
	"context"
)

// Adapted from the slides for "Rethinking Classical Concurrency Patterns" by Bryan C. Mills.

// An unbounded FIFO. Put never blocks.
type queue[T any] struct {
	items chan []T  // contains 0 or 1 non-empty slices
	empty chan bool // contains true if items is empty
}

func newQueue[T any]() *queue[T] {
	items := make(chan []T, 1)
	empty := make(chan bool, 1)
	empty <- true
	return &queue[T]{items, empty}
}

func (q *queue[T]) Put(item T) {
	var items []T
	select {
	case items = <-q.items:
	case <-q.empty:
	}
	items = append(items, item)
	q.items <- items
}

// Get blocks until an item is available. It returns false if ctx is done
// first.
func (q *queue[T]) Get(ctx context.Context) (T, bool) {
	var items []T
	select {
	case <-ctx.Done():
		var zero T
		return zero, false
	case items = <-q.items:
	}

	item := items[0]
	items = items[1:]
	if len(items) == 0 {
		q.empty <- true
	} else {
		q.items <- items
	}

	return item, true
}

func (q *queue[T]) Len() int {
	select {
	case items := <-q.items:
		n := len(items)
		q.items <- items
		return n
	case <-q.empty:
		q.empty <- true
		return 0
	}
}
