package loop

import "errors"

// Sentinel errors for the loop package.
var (
	// ErrAlreadyRunning is returned when Run is called on a running loop.
	ErrAlreadyRunning = errors.New("loop is already running")

	// ErrStopped is returned when work is submitted to a loop that has stopped.
	ErrStopped = errors.New("loop is stopped")
)

// PanicError is returned by Invoke when the invoked function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "loop: task panicked"
}
