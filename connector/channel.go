package connector

import "sync"

// Channel implements a [Connector] using a buffered channel.
type Channel[T any] struct {
	buffer chan T

	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a new [Channel] with the given capacity.
func NewChannel[T any](size uint64) *Channel[T] {
	return &Channel[T]{
		buffer: make(chan T, size),

		done: make(chan struct{}),
	}
}

func (c *Channel[T]) Write(item T) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.buffer <- item:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Channel[T]) Read() (T, error) {
	select {
	case item := <-c.buffer:
		return item, nil
	default:
	}

	select {
	case item := <-c.buffer:
		return item, nil

	case <-c.done:
		// drain what was written before closing
		select {
		case item := <-c.buffer:
			return item, nil
		default:
			var zero T
			return zero, ErrClosed
		}
	}
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	return len(c.buffer)
}

// Close closes the [Channel] connector, blocked readers and writers
// are released.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
