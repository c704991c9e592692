// Package buffer provides the thread-safe, locally editable text buffer that
// a Synchronizer keeps consistent with a replicated document.
//
// The buffer package provides:
//
//   - Thread-safe read/write access via sync.RWMutex
//   - Offsets counted in grapheme clusters, matching the document
//   - Insert and delete notifications through Observer
//   - Read-only snapshots for concurrent access
//   - Revision tracking for change management
//
// Basic usage:
//
//	buf := buffer.NewBufferFromString("Hello, World!")
//
//	cancel := buf.Observe(buffer.ObserverFuncs{
//	    OnInsert: func(offset int, text string) { ... },
//	    OnDelete: func(start, end int) { ... },
//	})
//	defer cancel()
//
//	buf.Insert(7, "Beautiful ")  // "Hello, Beautiful World!"
//	buf.Delete(0, 7)             // "Beautiful World!"
//
// Units:
//
// Text is stored as a sequence of grapheme clusters (github.com/rivo/uniseg).
// Inserted text is segmented on its own and its clusters are never merged
// with their neighbours, so an offset always names the same cluster the
// document does.
//
// Thread Safety:
//
// All Buffer methods are thread-safe. Observers are called after the lock is
// released, in the goroutine that made the edit. For scenarios requiring
// multiple reads without the possibility of intervening writes, use
// Snapshot() to obtain a consistent read-only view.
package buffer
