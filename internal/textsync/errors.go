package textsync

import (
	"errors"
	"fmt"
)

// Errors returned by the Synchronizer.
var (
	// ErrAlreadyStarted is returned by Start on a running Synchronizer.
	ErrAlreadyStarted = errors.New("synchronizer already started")

	// ErrStopped is returned by Start after the Synchronizer has stopped.
	ErrStopped = errors.New("synchronizer stopped")

	// ErrNoScheduler is returned by New and Attach without WithScheduler.
	ErrNoScheduler = errors.New("synchronizer needs a scheduler")
)

// Operations reported by SyncError.
const (
	OpLocalEdit = "local-edit"
	OpReconcile = "reconcile"
)

// SyncError is the fatal error that stopped a Synchronizer.
type SyncError struct {
	Op  string // OpLocalEdit or OpReconcile
	Err error
}

func (e *SyncError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("textsync: %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
