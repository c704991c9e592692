package repo

import (
	"context"
	"sync"

	"github.com/dshills/glyphcaster/internal/document"
)

// ChangeEvent reports that a document's heads moved.
type ChangeEvent struct {
	DocumentID DocumentID
	Heads      document.Heads
}

// Handle gives serialised access to one document.
type Handle struct {
	id DocumentID

	mu  sync.Mutex
	doc *document.Document

	subMu  sync.Mutex
	subs   map[chan ChangeEvent]struct{}
	closed bool
	done   chan struct{}

	// onChange is called after every heads move, outside mu.
	onChange func(h *Handle, ev ChangeEvent)
}

func newHandle(id DocumentID, doc *document.Document, onChange func(*Handle, ChangeEvent)) *Handle {
	return &Handle{
		id:       id,
		doc:      doc,
		subs:     make(map[chan ChangeEvent]struct{}),
		done:     make(chan struct{}),
		onChange: onChange,
	}
}

// DocumentID returns the document id.
func (h *Handle) DocumentID() DocumentID {
	return h.id
}

// URL returns the document URL.
func (h *Handle) URL() string {
	return h.id.URL()
}

// WithDocument runs fn with exclusive access to the document. If fn moved
// the heads, a ChangeEvent is broadcast after the lock is released. fn must
// not retain the document or call back into the handle.
func (h *Handle) WithDocument(fn func(doc *document.Document) error) error {
	h.mu.Lock()
	before := h.doc.Heads()
	err := fn(h.doc)
	after := h.doc.Heads()
	h.mu.Unlock()

	if !after.Equal(before) {
		h.broadcast(ChangeEvent{DocumentID: h.id, Heads: after})
	}
	return err
}

// Heads returns the document's current heads.
func (h *Handle) Heads() document.Heads {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Heads()
}

// read runs fn under the lock without change detection.
func (h *Handle) read(fn func(doc *document.Document)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.doc)
}

// Changes returns a stream of change events that ends when ctx is done or
// the handle is closed. The channel holds at most one pending event; a newer
// event replaces an undelivered one, so a slow reader always sees the latest
// heads and never blocks the writer.
func (h *Handle) Changes(ctx context.Context) <-chan ChangeEvent {
	ch := make(chan ChangeEvent, 1)

	h.subMu.Lock()
	if h.closed {
		h.subMu.Unlock()
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	h.subMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.subMu.Lock()
		defer h.subMu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}()
	return ch
}

func (h *Handle) broadcast(ev ChangeEvent) {
	h.subMu.Lock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Replace the undelivered event.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
	h.subMu.Unlock()

	if h.onChange != nil {
		h.onChange(h, ev)
	}
}

// SubscriberCount returns the number of open change streams.
func (h *Handle) SubscriberCount() int {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	return len(h.subs)
}

// Close ends every change stream. The document stays readable.
func (h *Handle) Close() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// Done is closed when the handle is closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
