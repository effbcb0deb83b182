// Package connector contains the links between pipeline stages.
package connector

import "errors"

// ErrClosed is returned by a closed connector.
var ErrClosed = errors.New("connector: closed")

// Connector moves items from a producer stage to a consumer stage.
type Connector[T any] interface {
	// Write blocks until the item is accepted.
	Write(item T) error
	// Read blocks until an item is available. Once the connector
	// is closed the remaining items are still returned.
	Read() (T, error)
	Close()
}
