package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a CAN id is not part of the pool.
	ErrNotFound = errors.New("pool: message not found")
	// ErrReentrant is returned when a message is mutated while
	// another mutation of the same message is in progress.
	ErrReentrant = errors.New("pool: message is busy")
	// ErrDuplicateID is returned when two messages share a CAN id.
	ErrDuplicateID = errors.New("pool: duplicate message id")
	// ErrUnknownSignal is returned when a signal name is not part of a message.
	ErrUnknownSignal = errors.New("pool: unknown signal")
)

// NotFoundError carries the CAN id that was looked up.
type NotFoundError struct {
	Pool string
	ID   uint32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pool %s: message 0x%X not found", e.Pool, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func reentrant(msgName string) error {
	return fmt.Errorf("%w: %s", ErrReentrant, msgName)
}

func unknownSignal(msgName, sigName string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownSignal, msgName, sigName)
}
