// Package mailbox provides a single-slot message channel between an
// interrupt-style producer and a cooperative consumer. The producer side
// offers a strictly non-blocking enqueue; at most one message is ever
// pending. A second message enqueued before the first is drained is
// dropped, not queued.
package mailbox

import "context"

type Mailbox[T any] struct {
	ch chan T
}

func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// TrySend attempts a non-blocking enqueue. It returns false when a
// previously sent message has not yet been consumed.
func (m *Mailbox[T]) TrySend(v T) bool {
	select {
	case m.ch <- v:
		return true
	default:
		return false
	}
}

// Send blocks until the slot is free or ctx is cancelled. Only safe to
// call from cooperative task context.
func (m *Mailbox[T]) Send(ctx context.Context, v T) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.ch <- v:
		return nil
	}
}

func (m *Mailbox[T]) Receive(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case v := <-m.ch:
		return v, nil
	}
}

func (m *Mailbox[T]) TryReceive() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the consumer side for use in select loops.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}
