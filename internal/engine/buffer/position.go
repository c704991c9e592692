package buffer

import "sync/atomic"

// Offset is a position in the buffer counted in grapheme clusters.
// It is the same unit the replicated document uses.
type Offset = int

// RevisionID identifies a buffer revision. Every edit that changes the text
// creates a new one.
type RevisionID uint64

var revisionCounter atomic.Uint64

// NewRevisionID returns a process-wide unique revision ID.
func NewRevisionID() RevisionID {
	return RevisionID(revisionCounter.Add(1))
}
