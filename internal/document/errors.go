package document

import "errors"

// Errors returned by document operations.
var (
	// ErrUnknownHead indicates a version references a change the document does not have.
	ErrUnknownHead = errors.New("unknown head")

	// ErrObjectNotFound indicates an object does not exist at the requested version.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNotText indicates a root key does not refer to a text object.
	ErrNotText = errors.New("object is not text")

	// ErrIndexOutOfRange indicates a splice outside the bounds of a text object.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrTransactionClosed indicates use of a committed or rolled back transaction.
	ErrTransactionClosed = errors.New("transaction closed")

	// ErrInvalidChange indicates a change references elements it cannot see.
	ErrInvalidChange = errors.New("invalid change")

	// ErrMissingDeps indicates loaded changes depend on changes that were never supplied.
	ErrMissingDeps = errors.New("missing dependencies")
)
