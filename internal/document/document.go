package document

import (
	"fmt"
	"sort"
)

// Option configures a Document.
type Option func(*Document)

// WithActor sets the actor id used for changes committed locally.
func WithActor(actor ActorID) Option {
	return func(d *Document) {
		if actor != "" {
			d.actor = actor
		}
	}
}

// Document is a replicated text document.
// See the package documentation for the version and offset model.
type Document struct {
	actor ActorID
	seq   uint64 // highest Seq authored by actor
	maxOp uint64 // highest op counter seen from any actor

	// Applied changes in causal order. Indices into this slice are stable and
	// are what element and key records refer to.
	changes []*changeRecord
	byHash  map[ChangeHash]int
	heads   Heads

	// Changes received before their dependencies.
	pending map[ChangeHash]Change

	objects map[ObjID]*textObject
	keys    map[string][]keyEntry
}

type changeRecord struct {
	change Change
	hash   ChangeHash
	deps   []int
}

type keyEntry struct {
	obj    ObjID
	change int
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		actor:   NewActorID(),
		byHash:  make(map[ChangeHash]int),
		heads:   Heads{},
		pending: make(map[ChangeHash]Change),
		objects: make(map[ObjID]*textObject),
		keys:    make(map[string][]keyEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Actor returns the actor id used for local changes.
func (d *Document) Actor() ActorID {
	return d.actor
}

// Heads returns the current version.
func (d *Document) Heads() Heads {
	return d.heads.Clone()
}

// HasChange reports whether the change has been applied.
func (d *Document) HasChange(hash ChangeHash) bool {
	_, ok := d.byHash[hash]
	return ok
}

// ChangeCount returns the number of applied changes.
func (d *Document) ChangeCount() int {
	return len(d.changes)
}

// PendingCount returns the number of changes waiting for dependencies.
func (d *Document) PendingCount() int {
	return len(d.pending)
}

// Get returns the text object stored under a root key in the current version.
func (d *Document) Get(key string) (ObjID, bool) {
	return d.lookup(key, d.currentClock())
}

// GetAt returns the text object stored under a root key at the given version.
func (d *Document) GetAt(key string, heads Heads) (ObjID, bool, error) {
	c, err := d.clockAt(heads)
	if err != nil {
		return ObjID{}, false, err
	}
	obj, ok := d.lookup(key, c)
	return obj, ok, nil
}

// Keys returns the root keys that hold an object in the current version.
func (d *Document) Keys() []string {
	c := d.currentClock()
	var keys []string
	for k := range d.keys {
		if _, ok := d.lookup(k, c); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Text returns the content of a text object in the current version.
func (d *Document) Text(obj ObjID) (string, error) {
	return d.textAt(obj, d.currentClock())
}

// TextAt returns the content of a text object at the given version.
func (d *Document) TextAt(obj ObjID, heads Heads) (string, error) {
	c, err := d.clockAt(heads)
	if err != nil {
		return "", err
	}
	return d.textAt(obj, c)
}

// Clusters returns the elements of a text object in the current version,
// one per grapheme the text was spliced with. Offsets index this slice;
// re-segmenting Text can merge neighbouring elements.
func (d *Document) Clusters(obj ObjID) ([]string, error) {
	c := d.currentClock()
	t, err := d.object(obj, c)
	if err != nil {
		return nil, err
	}
	_, values := t.view(c)
	return values, nil
}

// Length returns the grapheme length of a text object in the current version.
func (d *Document) Length(obj ObjID) (int, error) {
	c := d.currentClock()
	t, err := d.object(obj, c)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range t.elems {
		if e.visible(c) {
			n++
		}
	}
	return n, nil
}

// Changes returns all applied changes in causal order.
func (d *Document) Changes() []Change {
	out := make([]Change, len(d.changes))
	for i, rec := range d.changes {
		out[i] = rec.change
	}
	return out
}

// ChangesSince returns the applied changes that are not ancestors of have,
// in causal order. Hashes in have that this document does not know are ignored.
func (d *Document) ChangesSince(have Heads) []Change {
	known := make([]ChangeHash, 0, len(have))
	for _, h := range have {
		if d.HasChange(h) {
			known = append(known, h)
		}
	}
	c, err := d.clockAt(NewHeads(known...))
	if err != nil {
		// Every hash in known was checked above.
		panic(fmt.Sprintf("document: clock for known heads: %v", err))
	}
	var out []Change
	for i, rec := range d.changes {
		if !c.has(i) {
			out = append(out, rec.change)
		}
	}
	return out
}

// Missing returns the hashes in heads this document has not applied.
func (d *Document) Missing(heads Heads) []ChangeHash {
	var out []ChangeHash
	for _, h := range heads {
		if !d.HasChange(h) {
			out = append(out, h)
		}
	}
	return out
}

// ApplyChanges applies changes received from other replicas. Changes whose
// dependencies are not yet known are queued and applied once they arrive.
// Changes already applied are ignored.
func (d *Document) ApplyChanges(changes ...Change) error {
	for _, c := range changes {
		h := c.Hash()
		if d.HasChange(h) {
			continue
		}
		if !d.depsKnown(c) {
			d.pending[h] = c
			continue
		}
		if err := d.integrate(c, h); err != nil {
			return err
		}
	}
	return d.drainPending()
}

// Merge applies every change of other that this document lacks.
func (d *Document) Merge(other *Document) error {
	return d.ApplyChanges(other.ChangesSince(d.Heads())...)
}

// Fork returns an independent copy of the document with its own actor.
func (d *Document) Fork(opts ...Option) *Document {
	nd := New(opts...)
	if err := nd.ApplyChanges(d.Changes()...); err != nil {
		panic(fmt.Sprintf("document: replaying own history: %v", err))
	}
	return nd
}

func (d *Document) depsKnown(c Change) bool {
	for _, dep := range c.Deps {
		if !d.HasChange(dep) {
			return false
		}
	}
	return true
}

func (d *Document) drainPending() error {
	for progress := true; progress; {
		progress = false
		for h, c := range d.pending {
			if d.HasChange(h) {
				delete(d.pending, h)
				continue
			}
			if !d.depsKnown(c) {
				continue
			}
			delete(d.pending, h)
			if err := d.integrate(c, h); err != nil {
				return err
			}
			progress = true
		}
	}
	return nil
}

// integrate applies a causally ready change. It validates every op before
// mutating anything so a rejected change leaves the document untouched.
func (d *Document) integrate(c Change, hash ChangeHash) error {
	if err := d.validate(c); err != nil {
		return fmt.Errorf("%w: change %s: %v", ErrInvalidChange, hash.Short(), err)
	}

	idx := len(d.changes)
	deps := make([]int, len(c.Deps))
	for i, h := range c.Deps {
		deps[i] = d.byHash[h]
	}

	for i, op := range c.Ops {
		id := c.OpID(i)
		switch op.Action {
		case ActionMakeText:
			obj := ObjID(id)
			d.objects[obj] = newTextObject(obj, idx)
			d.keys[op.Key] = append(d.keys[op.Key], keyEntry{obj: obj, change: idx})
		case ActionInsert:
			d.objects[op.Obj].insert(&element{id: id, value: op.Value, change: idx}, op.Ref)
		case ActionDelete:
			e := d.objects[op.Obj].byID[op.Target]
			e.deletes = append(e.deletes, idx)
		}
	}

	d.changes = append(d.changes, &changeRecord{change: c, hash: hash, deps: deps})
	d.byHash[hash] = idx

	next := make([]ChangeHash, 0, len(d.heads)+1)
	for _, h := range d.heads {
		if !containsHash(c.Deps, h) {
			next = append(next, h)
		}
	}
	d.heads = NewHeads(append(next, hash)...)

	if m := c.MaxOp(); m > d.maxOp {
		d.maxOp = m
	}
	if c.Actor == d.actor && c.Seq > d.seq {
		d.seq = c.Seq
	}
	return nil
}

func (d *Document) validate(c Change) error {
	if c.StartOp == 0 && len(c.Ops) > 0 {
		return fmt.Errorf("startOp must be positive")
	}
	newObjs := make(map[ObjID]bool)
	newElems := make(map[ObjID]map[OpID]bool)
	has := func(obj ObjID, id OpID) bool {
		if newElems[obj][id] {
			return true
		}
		if t, ok := d.objects[obj]; ok {
			_, ok := t.byID[id]
			return ok
		}
		return false
	}
	for i, op := range c.Ops {
		id := c.OpID(i)
		switch op.Action {
		case ActionMakeText:
			if op.Key == "" {
				return fmt.Errorf("op %s: empty key", id)
			}
			obj := ObjID(id)
			newObjs[obj] = true
			newElems[obj] = make(map[OpID]bool)
		case ActionInsert, ActionDelete:
			if _, ok := d.objects[op.Obj]; !ok && !newObjs[op.Obj] {
				return fmt.Errorf("op %s: %w: %s", id, ErrObjectNotFound, op.Obj)
			}
			if op.Action == ActionInsert {
				if !op.Ref.IsZero() && !has(op.Obj, op.Ref) {
					return fmt.Errorf("op %s: unknown reference %s", id, op.Ref)
				}
				if newElems[op.Obj] == nil {
					newElems[op.Obj] = make(map[OpID]bool)
				}
				newElems[op.Obj][id] = true
			} else if !has(op.Obj, op.Target) {
				return fmt.Errorf("op %s: unknown target %s", id, op.Target)
			}
		default:
			return fmt.Errorf("op %s: unknown action %d", id, op.Action)
		}
	}
	return nil
}

func (d *Document) lookup(key string, c clock) (ObjID, bool) {
	var best ObjID
	found := false
	for _, e := range d.keys[key] {
		if !c.has(e.change) {
			continue
		}
		if !found || OpID(e.obj).Compare(OpID(best)) > 0 {
			best = e.obj
			found = true
		}
	}
	return best, found
}

func (d *Document) object(obj ObjID, c clock) (*textObject, error) {
	if obj.IsRoot() {
		return nil, fmt.Errorf("%w: %s", ErrNotText, obj)
	}
	t, ok := d.objects[obj]
	if !ok || !c.has(t.created) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, obj)
	}
	return t, nil
}

func (d *Document) textAt(obj ObjID, c clock) (string, error) {
	t, err := d.object(obj, c)
	if err != nil {
		return "", err
	}
	return t.text(c), nil
}

func containsHash(hashes []ChangeHash, h ChangeHash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}
