// Package textsync keeps an editable buffer and a text object of a
// replicated document consistent in both directions.
//
// A Synchronizer maintains one invariant: the buffer shows the content of
// the text object at the version recorded in its view heads. Local edits
// reported by the buffer are committed as transactions anchored at the view
// heads, so they are expressed against exactly what the user saw. Remote
// changes are pulled into the buffer by diffing the view heads against the
// document's current heads and replaying the patches.
//
// # Threading
//
// Buffer edits, the edit notifications they trigger and reconciliation must
// all happen on one goroutine. Change notifications arrive on a background
// goroutine, which hands each reconciliation to the Scheduler; in an
// application that is the main loop (internal/loop) the buffer is edited on.
// The view heads are guarded by a mutex held for every read-modify-write.
// The reconciling flag only breaks the feedback cycle between the
// Synchronizer's own buffer edits and the notifications they produce.
//
//	sync, err := textsync.New(handle, buf,
//	    textsync.WithScheduler(mainLoop),
//	    textsync.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := sync.Start(ctx); err != nil {
//	    return err
//	}
//	<-sync.Done()
//	return sync.Err()
//
// # Failure
//
// Every error inside the Synchronizer means the buffer and the document no
// longer agree on coordinates. The first one stops synchronization: the
// buffer is no longer observed, Done is closed and Err reports a *SyncError.
package textsync
