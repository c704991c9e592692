package textsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/engine/buffer"
	"github.com/dshills/glyphcaster/internal/repo"
)

// Document is the replicated side of the synchronization. *repo.Handle
// implements it.
type Document interface {
	WithDocument(fn func(doc *document.Document) error) error
	Changes(ctx context.Context) <-chan repo.ChangeEvent
}

// Buffer is the editable side of the synchronization. *buffer.Buffer
// implements it. Offsets count grapheme clusters.
type Buffer interface {
	Observe(o buffer.Observer) (cancel func())
	Insert(offset int, text string) (int, error)
	Delete(start, end int) error
}

// Synchronizer binds one Buffer to one text object.
type Synchronizer struct {
	doc    Document
	buf    Buffer
	locate Locator
	sched  Scheduler
	logger *zap.Logger

	obj document.ObjID

	// mu guards viewHeads for the whole of every read-modify-write.
	mu        sync.Mutex
	viewHeads document.Heads

	// reconciling is set while the Synchronizer edits the buffer itself.
	reconciling atomic.Bool

	lifeMu    sync.Mutex
	started   bool
	cancel    context.CancelFunc
	unobserve func()
	err       error
	done      chan struct{}
}

// New creates a Synchronizer for buf and the text object selected by the
// locator. The buffer must already hold the object's current text; the view
// heads start at the document's current heads.
func New(doc Document, buf Buffer, opts ...Option) (*Synchronizer, error) {
	return newSynchronizer(doc, buf, opts, nil)
}

// Attach creates a buffer holding the located text object and a
// Synchronizer for it. The text and the view heads are read at the same
// version, and the buffer gets the document's clusters unchanged so both
// sides agree on offsets.
func Attach(doc Document, opts ...Option) (*buffer.Buffer, *Synchronizer, error) {
	var buf *buffer.Buffer
	s, err := newSynchronizer(doc, nil, opts, func(d *document.Document, obj document.ObjID) (Buffer, error) {
		clusters, err := d.Clusters(obj)
		if err != nil {
			return nil, err
		}
		buf = buffer.NewBufferFromClusters(clusters)
		return buf, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return buf, s, nil
}

func newSynchronizer(doc Document, buf Buffer, opts []Option, fill func(*document.Document, document.ObjID) (Buffer, error)) (*Synchronizer, error) {
	s := &Synchronizer{
		doc:    doc,
		buf:    buf,
		locate: RootKey(repo.DefaultTextKey),
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sched == nil {
		return nil, fmt.Errorf("textsync: %w", ErrNoScheduler)
	}

	err := doc.WithDocument(func(d *document.Document) error {
		obj, err := s.locate(d)
		if err != nil {
			return err
		}
		if _, err := d.Length(obj); err != nil {
			return err
		}
		if fill != nil {
			b, err := fill(d, obj)
			if err != nil {
				return err
			}
			s.buf = b
		}
		s.obj = obj
		s.viewHeads = d.Heads()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("textsync: %w", err)
	}
	return s, nil
}

// Object returns the tracked text object.
func (s *Synchronizer) Object() document.ObjID {
	return s.obj
}

// ViewHeads returns the version the buffer currently shows. It must not be
// called from a buffer observer while the Synchronizer is editing.
func (s *Synchronizer) ViewHeads() document.Heads {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewHeads.Clone()
}

// Start subscribes to the buffer's edits and the document's changes.
// Synchronization continues until ctx is done, Stop is called, the change
// stream ends or a fatal error occurs.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.unobserve = s.buf.Observe(buffer.ObserverFuncs{
		OnInsert: func(offset int, text string) {
			s.handleLocalEdit(offset, 0, text)
		},
		OnDelete: func(start, end int) {
			s.handleLocalEdit(start, end-start, "")
		},
	})
	events := s.doc.Changes(ctx)
	go s.watch(ctx, events)

	s.logger.Debug("synchronizer started", zap.Stringer("obj", s.obj))
	return nil
}

// Stop ends synchronization. It is safe to call more than once.
func (s *Synchronizer) Stop() {
	s.shutdown(nil)
}

// Done is closed once synchronization has ended.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that ended synchronization, if any.
func (s *Synchronizer) Err() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.err
}

func (s *Synchronizer) watch(ctx context.Context, events <-chan repo.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			s.shutdown(nil)
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Debug("change stream ended")
				s.shutdown(nil)
				return
			}
			s.logger.Debug("document changed", zap.Stringer("heads", ev.Heads))
			s.sched.Post(s.reconcile)
		}
	}
}

func (s *Synchronizer) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Synchronizer) shutdown(err error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.stopped() {
		return
	}
	s.err = err
	if s.cancel != nil {
		s.cancel()
	}
	if s.unobserve != nil {
		s.unobserve()
	}
	close(s.done)
}

func (s *Synchronizer) fail(op string, err error) {
	serr := &SyncError{Op: op, Err: err}
	s.logger.Error("synchronization stopped", zap.Error(serr))
	s.shutdown(serr)
}

// handleLocalEdit records a user edit of the buffer. offset and del are in
// the coordinates of the view heads, which is what the buffer showed before
// the edit.
func (s *Synchronizer) handleLocalEdit(offset, del int, text string) {
	if s.reconciling.Load() || s.stopped() {
		return
	}
	if err := s.commitLocal(offset, del, text); err != nil {
		s.fail(OpLocalEdit, err)
		return
	}
	s.reconcile()
}

func (s *Synchronizer) commitLocal(offset, del int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.doc.WithDocument(func(d *document.Document) error {
		tx, err := d.TransactionAt(s.viewHeads)
		if err != nil {
			return err
		}
		if err := tx.SpliceText(s.obj, offset, del, text); err != nil {
			tx.Rollback()
			return err
		}
		hash, ok := tx.Commit()
		if ok {
			s.viewHeads = document.NewHeads(hash)
			s.logger.Debug("committed local edit",
				zap.Int("offset", offset),
				zap.Int("deleted", del),
				zap.Int("inserted", document.GraphemeCount(text)),
				zap.Stringer("change", hash))
		}
		return nil
	})
}

// reconcile brings the buffer from the view heads to the document's current
// heads.
func (s *Synchronizer) reconcile() {
	if s.stopped() {
		return
	}
	s.reconciling.Store(true)
	defer s.reconciling.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		heads   document.Heads
		patches []document.Patch
	)
	err := s.doc.WithDocument(func(d *document.Document) error {
		heads = d.Heads()
		if heads.Equal(s.viewHeads) {
			return nil
		}
		var err error
		patches, err = d.Diff(s.viewHeads, heads)
		return err
	})
	if err != nil {
		s.fail(OpReconcile, err)
		return
	}
	if err := applyPatches(s.buf, s.obj, patches, s.logger); err != nil {
		s.fail(OpReconcile, err)
		return
	}
	s.viewHeads = heads
}

// applyPatches replays patches for obj onto buf. Patch indices refer to the
// text before any patch of the batch, so each one is shifted by the net
// length change of the patches already applied.
func applyPatches(buf Buffer, obj document.ObjID, patches []document.Patch, logger *zap.Logger) error {
	adj := 0
	for _, p := range patches {
		if p.Obj != obj {
			continue
		}
		logger.Debug("applying patch", zap.Stringer("patch", p))
		switch a := p.Action.(type) {
		case document.SpliceText:
			at := a.Index + adj
			if _, err := buf.Insert(at, a.Value); err != nil {
				return fmt.Errorf("insert at %d: %w", at, err)
			}
			adj += document.GraphemeCount(a.Value)
		case document.DeleteSeq:
			at := a.Index + adj
			if err := buf.Delete(at, at+a.Length); err != nil {
				return fmt.Errorf("delete %d..%d: %w", at, at+a.Length, err)
			}
			adj -= a.Length
		}
	}
	return nil
}
