package textsync

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/document"
)

// Locator resolves the text object a Synchronizer tracks.
type Locator func(doc *document.Document) (document.ObjID, error)

// RootKey locates the text object stored under a root key.
func RootKey(key string) Locator {
	return func(doc *document.Document) (document.ObjID, error) {
		obj, ok := doc.Get(key)
		if !ok {
			return document.ObjID{}, fmt.Errorf("%w: root key %q", document.ErrObjectNotFound, key)
		}
		return obj, nil
	}
}

// Scheduler runs functions on the goroutine that owns the buffer.
type Scheduler interface {
	Post(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// Post implements Scheduler.
func (f SchedulerFunc) Post(fn func()) { f(fn) }

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLocator sets how the tracked text object is found.
// The default is RootKey("content").
func WithLocator(l Locator) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.locate = l
		}
	}
}

// WithScheduler sets where reconciliations triggered by change
// notifications run: the goroutine that edits the buffer. It is required.
func WithScheduler(sched Scheduler) Option {
	return func(s *Synchronizer) {
		if sched != nil {
			s.sched = sched
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}
