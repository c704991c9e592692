// Package mirror keeps a plain file and a text object of a document in step.
//
// Document changes are written to the file atomically. Edits to the file,
// detected with fsnotify and debounced, are folded into the document as the
// smallest set of splices a text diff finds, so concurrent edits by other
// peers to untouched regions survive.
package mirror
