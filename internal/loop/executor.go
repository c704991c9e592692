package loop

import (
	"runtime/debug"
	"time"
)

// PanicHandler is called when a posted function panics.
// It receives the panic value and the stack trace.
type PanicHandler func(panicValue any, stack []byte)

// result describes a single task execution.
type result struct {
	duration   time.Duration
	panicked   bool
	panicValue any
	panicStack []byte
}

// execute runs fn with panic recovery and timing.
func execute(fn func(), panicHandler PanicHandler) (res result) {
	start := time.Now()

	defer func() {
		res.duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			res.panicked = true
			res.panicValue = r
			res.panicStack = stack

			// Protect the panic handler call - don't let it crash the process
			if panicHandler != nil {
				func() {
					defer func() { _ = recover() }()
					panicHandler(r, stack)
				}()
			}
		}
	}()

	fn()
	return res
}
