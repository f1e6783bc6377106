package sync

import "context"

type Token struct {
	t chan struct{}
}

type notifierState[T any] struct {
	queues  map[chan struct{}]*queue[T]
	last    T
	hasLast bool
}

// A struct that facilitates one-to-many broadcast notifications. All listeners are guaranteed
// to be notified of every change, and once you've registered, you won't miss any changes.
//
// St is a buffered channel that acts as a mutex for the notifier's state. Every listener has its
// own unbounded queue, so a slow listener never blocks the notifier. Essentially, you're trading
// potentially unbounded memory growth for the guarantee that you won't miss any messages and no
// goroutine can slow another down.
//
// Listeners that register after the first change start with the most recent value already
// queued, so a late subscriber (e.g. a FIB syncer started after the first SPF run) still sees
// the current state.
type QueuedNotifier[T any] struct {
	st chan *notifierState[T]
}

func NewQueuedNotifier[T any]() *QueuedNotifier[T] {
	st := make(chan *notifierState[T], 1)
	st <- &notifierState[T]{
		queues: make(map[chan struct{}]*queue[T]),
	}

	return &QueuedNotifier[T]{
		st: st,
	}
}

func (n *QueuedNotifier[T]) Register() Token {
	q := newQueue[T]()
	t := make(chan struct{})

	st := <-n.st
	if st.hasLast {
		q.Put(st.last)
	}
	st.queues[t] = q
	n.st <- st

	return Token{t}
}

func (n *QueuedNotifier[T]) Unregister(t Token) {
	st := <-n.st
	delete(st.queues, t.t)
	n.st <- st
}

func (n *QueuedNotifier[T]) NotifyChange(v T) {
	st := <-n.st
	for _, q := range st.queues {
		q.Put(v)
	}
	st.last = v
	st.hasLast = true
	n.st <- st
}

// AwaitChange returns the next value for t. It returns false if t isn't
// registered or ctx is done.
func (n *QueuedNotifier[T]) AwaitChange(ctx context.Context, t Token) (T, bool) {
	st := <-n.st
	q := st.queues[t.t]
	n.st <- st

	if q == nil {
		var zero T
		return zero, false
	}

	return q.Get(ctx)
}

// Pending returns the number of values queued for t.
func (n *QueuedNotifier[T]) Pending(t Token) int {
	st := <-n.st
	q := st.queues[t.t]
	n.st <- st

	if q == nil {
		return 0
	}

	return q.Len()
}
