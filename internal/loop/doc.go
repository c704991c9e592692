// Package loop provides the main loop: a single goroutine that runs posted
// functions one at a time, in the order they were posted.
//
// Everything that touches an editable buffer runs on the loop, which gives
// the buffer, its observers and the synchronizer attached to it a single
// logical thread without any of them holding locks across calls into each
// other.
//
//	l := loop.New(loop.WithLogger(logger))
//	go l.Run(ctx)
//
//	l.Post(func() { buf.Insert(0, "x") })
//
//	err := l.Invoke(ctx, func() error {
//	    _, err := buf.Insert(0, "y")
//	    return err
//	})
//
// Post never blocks and may be called from a function running on the loop.
// Invoke waits for the function to finish and must not be called from the
// loop itself.
//
// A panic in a posted function is recovered, reported to the panic handler
// and does not stop the loop.
package loop
