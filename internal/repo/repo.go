package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/store"
)

// DefaultTextKey and DefaultText describe the text object a new document
// starts with when the caller does not choose one.
const (
	DefaultTextKey = "content"
	DefaultText    = "# Untitled"
)

// Finder fetches documents this repo does not have, typically from peers.
type Finder interface {
	// FindDocument returns every change of the document, or an error
	// wrapping ErrNotFound if the finder does not have it.
	FindDocument(ctx context.Context, id DocumentID) ([]document.Change, error)
}

// Option configures a Repo.
type Option func(*Repo)

// WithStore persists documents to s.
func WithStore(s store.Store) Option {
	return func(r *Repo) {
		r.store = s
	}
}

// WithActor sets the actor id used for local changes to every document.
func WithActor(actor document.ActorID) Option {
	return func(r *Repo) {
		r.actor = actor
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Repo owns the open documents of a process.
type Repo struct {
	actor  document.ActorID
	store  store.Store
	logger *zap.Logger

	mu        sync.Mutex
	handles   map[DocumentID]*Handle
	finders   []Finder
	listeners map[int]func(ChangeEvent)
	nextID    int
	closed    bool

	// saved tracks what has been written to the store per document.
	saveMu sync.Mutex
	saved  map[DocumentID]document.Heads
}

// New creates a repo. Without WithStore documents live only in memory.
func New(opts ...Option) *Repo {
	r := &Repo{
		actor:     document.NewActorID(),
		logger:    zap.NewNop(),
		handles:   make(map[DocumentID]*Handle),
		listeners: make(map[int]func(ChangeEvent)),
		saved:     make(map[DocumentID]document.Heads),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Actor returns the actor id used for local changes.
func (r *Repo) Actor() document.ActorID {
	return r.actor
}

// Create makes a new document, runs init in its first transaction and
// persists the result.
func (r *Repo) Create(ctx context.Context, init func(tx *document.Transaction) error) (*Handle, error) {
	doc := document.New(document.WithActor(r.actor))
	if init != nil {
		tx := doc.Transaction()
		if err := init(tx); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("create: %w", err)
		}
		tx.CommitWith("create")
	}
	return r.register(ctx, NewDocumentID(), doc)
}

// CreateText makes a new document holding one text object under key.
// Empty arguments fall back to DefaultTextKey and DefaultText.
func (r *Repo) CreateText(ctx context.Context, key, initial string) (*Handle, error) {
	if key == "" {
		key = DefaultTextKey
	}
	if initial == "" {
		initial = DefaultText
	}
	return r.Create(ctx, func(tx *document.Transaction) error {
		obj, err := tx.PutText(key)
		if err != nil {
			return err
		}
		return tx.SpliceText(obj, 0, 0, initial)
	})
}

// Find returns the handle for id, loading it from the store or fetching it
// from the registered finders if it is not open.
func (r *Repo) Find(ctx context.Context, id DocumentID) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if h, ok := r.handles[id]; ok {
		r.mu.Unlock()
		return h, nil
	}
	finders := append([]Finder(nil), r.finders...)
	r.mu.Unlock()

	if r.store != nil {
		changes, err := r.store.Load(ctx, id.String())
		switch {
		case err == nil:
			doc, err := r.replay(changes)
			if err != nil {
				return nil, fmt.Errorf("find %s: %w", id, err)
			}
			r.markSaved(id, doc.Heads())
			return r.register(ctx, id, doc)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("find %s: %w", id, err)
		}
	}

	for _, f := range finders {
		changes, err := f.FindDocument(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			r.logger.Warn("finder failed", zap.Stringer("doc", id), zap.Error(err))
			continue
		}
		doc, err := r.replay(changes)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", id, err)
		}
		return r.register(ctx, id, doc)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Import applies changes received for id, opening the document if needed.
func (r *Repo) Import(ctx context.Context, id DocumentID, changes []document.Change) (*Handle, error) {
	r.mu.Lock()
	h, ok := r.handles[id]
	r.mu.Unlock()
	if ok {
		err := h.WithDocument(func(doc *document.Document) error {
			return doc.ApplyChanges(changes...)
		})
		return h, err
	}

	doc := document.New(document.WithActor(r.actor))
	if err := doc.ApplyChanges(changes...); err != nil {
		return nil, fmt.Errorf("import %s: %w", id, err)
	}
	return r.register(ctx, id, doc)
}

// Handle returns the open handle for id, if any.
func (r *Repo) Handle(id DocumentID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// Handles returns every open handle, ordered by document id.
func (r *Repo) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].id.String() < out[j].id.String()
	})
	return out
}

// Stored returns the ids of every document in the store.
func (r *Repo) Stored(ctx context.Context) ([]DocumentID, error) {
	if r.store == nil {
		return nil, nil
	}
	names, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]DocumentID, 0, len(names))
	for _, n := range names {
		id, err := ParseDocumentID(n)
		if err != nil {
			r.logger.Warn("ignoring stored entry", zap.String("name", n))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AddFinder registers a source for documents Find cannot resolve locally.
func (r *Repo) AddFinder(f Finder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finders = append(r.finders, f)
}

// OnChange registers fn to be called after any open document changes or a
// document is opened. It returns a function that unregisters fn.
func (r *Repo) OnChange(fn func(ChangeEvent)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Close closes every handle. Documents remain in the store.
func (r *Repo) Close() {
	r.mu.Lock()
	r.closed = true
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

func (r *Repo) replay(changes []document.Change) (*document.Document, error) {
	doc := document.New(document.WithActor(r.actor))
	if err := doc.ApplyChanges(changes...); err != nil {
		return nil, err
	}
	if n := doc.PendingCount(); n > 0 {
		return nil, fmt.Errorf("%w: %d changes", document.ErrMissingDeps, n)
	}
	return doc, nil
}

// register makes doc available under id, persists it and announces it.
// If another caller registered id first, that handle wins and doc's changes
// are merged into it.
func (r *Repo) register(ctx context.Context, id DocumentID, doc *document.Document) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if h, ok := r.handles[id]; ok {
		r.mu.Unlock()
		err := h.WithDocument(func(existing *document.Document) error {
			return existing.Merge(doc)
		})
		return h, err
	}
	h := newHandle(id, doc, r.handleChanged)
	r.handles[id] = h
	r.mu.Unlock()

	r.logger.Debug("document opened", zap.Stringer("doc", id), zap.Stringer("heads", doc.Heads()))
	if err := r.persist(ctx, h); err != nil {
		return h, err
	}
	r.notify(ChangeEvent{DocumentID: id, Heads: h.Heads()})
	return h, nil
}

func (r *Repo) handleChanged(h *Handle, ev ChangeEvent) {
	if err := r.persist(context.Background(), h); err != nil {
		r.logger.Error("persisting changes", zap.Stringer("doc", h.id), zap.Error(err))
	}
	r.notify(ev)
}

func (r *Repo) notify(ev ChangeEvent) {
	r.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(r.listeners))
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, r.listeners[id])
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (r *Repo) markSaved(id DocumentID, heads document.Heads) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	r.saved[id] = heads
}

// persist appends the changes of h that are not yet in the store.
func (r *Repo) persist(ctx context.Context, h *Handle) error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	var changes []document.Change
	var heads document.Heads
	h.read(func(doc *document.Document) {
		changes = doc.ChangesSince(r.saved[h.id])
		heads = doc.Heads()
	})
	if len(changes) == 0 {
		return nil
	}
	if err := r.store.Append(ctx, h.id.String(), changes); err != nil {
		return err
	}
	r.saved[h.id] = heads
	r.logger.Debug("persisted changes",
		zap.Stringer("doc", h.id),
		zap.Int("count", len(changes)),
		zap.Stringer("heads", heads))
	return nil
}
