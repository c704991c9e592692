package repo

import "errors"

// Errors returned by repo operations.
var (
	// ErrNotFound indicates no local copy, store entry or finder has the document.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidURL indicates a malformed document URL.
	ErrInvalidURL = errors.New("invalid document url")

	// ErrClosed indicates use of a closed repo or handle.
	ErrClosed = errors.New("closed")
)
