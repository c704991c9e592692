// Package document provides the replicated text document used by Glyphcaster.
//
// A Document is a sequence CRDT (RGA) over grapheme clusters, stored as a
// hash-linked graph of changes. Every change records the heads it was based
// on, so any historical version can be addressed by its set of heads and two
// versions can be diffed.
//
// # Versions
//
// Heads identify a version: the set of changes no other change depends on.
// Two replicas with the same heads have identical content.
//
//	doc := document.New()
//	tx := doc.Transaction()
//	text, _ := tx.PutText("content")
//	_ = tx.SpliceText(text, 0, 0, "Hello")
//	hash, _ := tx.Commit()
//
//	heads := doc.Heads() // [hash]
//
// # Transactions at a version
//
// TransactionAt anchors a transaction to an older version. Offsets passed to
// SpliceText are interpreted against the content at that version, and the
// resulting change depends only on it, so edits made against a stale view
// merge with everything committed since:
//
//	tx, _ := doc.TransactionAt(viewHeads)
//	_ = tx.SpliceText(text, 5, 0, "!")
//	hash, _ := tx.Commit()
//
// # Diffs
//
// Diff returns the patches that turn the content at one version into the
// content at another. For text objects the patch indices are expressed in the
// coordinate space of the from version, ascending and non-overlapping:
// applying them in order requires shifting each index by the net length
// change of the patches applied before it.
//
// # Units
//
// All text offsets and lengths count grapheme clusters, as segmented by
// github.com/rivo/uniseg. Each inserted cluster is one element of the
// sequence and is never re-segmented against its neighbours.
//
// # Thread Safety
//
// A Document is not safe for concurrent use. Callers share a Document through
// repo.Handle, which serialises access.
package document
