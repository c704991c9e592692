package peer

import "errors"

var (
	// ErrClosed is returned when using a closed node.
	ErrClosed = errors.New("peer: node closed")

	// ErrNotListening is returned by Addr before Listen.
	ErrNotListening = errors.New("peer: not listening")
)
