// Package store persists document changes.
//
// A store is an append-only log of changes per document. Documents are
// rebuilt by replaying the log, so a store never needs to understand the
// content it holds.
package store

import (
	"context"
	"errors"

	"github.com/dshills/glyphcaster/internal/document"
)

// ErrNotFound is returned by Load for a document the store has never seen.
var ErrNotFound = errors.New("document not found in store")

// Store is an append-only change log keyed by document id.
type Store interface {
	// Append adds changes to the log of document id.
	Append(ctx context.Context, id string, changes []document.Change) error

	// Load returns every change stored for document id, in append order.
	Load(ctx context.Context, id string) ([]document.Change, error)

	// List returns the ids of all stored documents, sorted.
	List(ctx context.Context) ([]string, error)
}
