package document

import (
	"fmt"
	"time"
)

// Transaction accumulates ops against a fixed version of a document and
// commits them as a single change. A Transaction must be used and committed
// while its document is not modified by anything else.
type Transaction struct {
	doc     *Document
	base    Heads
	clock   clock
	startOp uint64
	ops     []Op
	views   map[ObjID]*txView
	keys    map[string]ObjID
	closed  bool
}

// txView is the visible content of one text object as seen by the
// transaction, including its own uncommitted ops.
type txView struct {
	ids    []OpID
	values []string
}

// Transaction opens a transaction at the current version.
func (d *Document) Transaction() *Transaction {
	tx, err := d.TransactionAt(d.heads)
	if err != nil {
		panic(fmt.Sprintf("document: transaction at own heads: %v", err))
	}
	return tx
}

// TransactionAt opens a transaction anchored at heads. Offsets are
// interpreted against the content at that version and the committed change
// depends only on heads.
func (d *Document) TransactionAt(heads Heads) (*Transaction, error) {
	heads = NewHeads(heads...)
	c, err := d.clockAt(heads)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		doc:     d,
		base:    heads,
		clock:   c,
		startOp: d.maxOp + 1,
		views:   make(map[ObjID]*txView),
		keys:    make(map[string]ObjID),
	}, nil
}

// Base returns the version the transaction is anchored at.
func (tx *Transaction) Base() Heads {
	return tx.base.Clone()
}

// Pending returns the number of uncommitted ops.
func (tx *Transaction) Pending() int {
	return len(tx.ops)
}

func (tx *Transaction) nextID() OpID {
	return OpID{Counter: tx.startOp + uint64(len(tx.ops)), Actor: tx.doc.actor}
}

// PutText creates an empty text object under a root key, replacing whatever
// the key held.
func (tx *Transaction) PutText(key string) (ObjID, error) {
	if tx.closed {
		return ObjID{}, ErrTransactionClosed
	}
	if key == "" {
		return ObjID{}, fmt.Errorf("put text: empty key")
	}
	obj := ObjID(tx.nextID())
	tx.ops = append(tx.ops, Op{Action: ActionMakeText, Obj: Root, Key: key})
	tx.views[obj] = &txView{}
	tx.keys[key] = obj
	return obj, nil
}

// Get returns the object under a root key as seen by the transaction.
func (tx *Transaction) Get(key string) (ObjID, bool) {
	if obj, ok := tx.keys[key]; ok {
		return obj, true
	}
	return tx.doc.lookup(key, tx.clock)
}

// Text returns the content of a text object as seen by the transaction.
func (tx *Transaction) Text(obj ObjID) (string, error) {
	v, err := tx.view(obj)
	if err != nil {
		return "", err
	}
	return joinValues(v.values), nil
}

// Length returns the grapheme length of a text object as seen by the transaction.
func (tx *Transaction) Length(obj ObjID) (int, error) {
	v, err := tx.view(obj)
	if err != nil {
		return 0, err
	}
	return len(v.ids), nil
}

func (tx *Transaction) view(obj ObjID) (*txView, error) {
	if v, ok := tx.views[obj]; ok {
		return v, nil
	}
	t, err := tx.doc.object(obj, tx.clock)
	if err != nil {
		return nil, err
	}
	ids, values := t.view(tx.clock)
	v := &txView{ids: ids, values: values}
	tx.views[obj] = v
	return v, nil
}

// SpliceText removes del grapheme clusters at pos and inserts text there.
func (tx *Transaction) SpliceText(obj ObjID, pos, del int, text string) error {
	if tx.closed {
		return ErrTransactionClosed
	}
	v, err := tx.view(obj)
	if err != nil {
		return fmt.Errorf("splice %s: %w", obj, err)
	}
	if pos < 0 || del < 0 || pos+del > len(v.ids) {
		return fmt.Errorf("splice %s at %d delete %d (length %d): %w",
			obj, pos, del, len(v.ids), ErrIndexOutOfRange)
	}

	for i := 0; i < del; i++ {
		tx.ops = append(tx.ops, Op{Action: ActionDelete, Obj: obj, Target: v.ids[pos+i]})
	}
	v.ids = append(v.ids[:pos], v.ids[pos+del:]...)
	v.values = append(v.values[:pos], v.values[pos+del:]...)

	clusters := Graphemes(text)
	if len(clusters) == 0 {
		return nil
	}
	var ref OpID
	if pos > 0 {
		ref = v.ids[pos-1]
	}
	ids := make([]OpID, len(clusters))
	for i, c := range clusters {
		id := tx.nextID()
		tx.ops = append(tx.ops, Op{Action: ActionInsert, Obj: obj, Ref: ref, Value: c})
		ids[i] = id
		ref = id
	}
	v.ids = append(v.ids[:pos], append(ids, v.ids[pos:]...)...)
	v.values = append(v.values[:pos], append(clusters, v.values[pos:]...)...)
	return nil
}

// Commit records the transaction as a change. It returns false if the
// transaction made no ops, in which case nothing is recorded.
func (tx *Transaction) Commit() (ChangeHash, bool) {
	return tx.CommitWith("")
}

// CommitWith is Commit with a change message.
func (tx *Transaction) CommitWith(message string) (ChangeHash, bool) {
	if tx.closed {
		return ChangeHash{}, false
	}
	tx.closed = true
	if len(tx.ops) == 0 {
		return ChangeHash{}, false
	}

	d := tx.doc
	c := Change{
		Actor:   d.actor,
		Seq:     d.seq + 1,
		StartOp: tx.startOp,
		Time:    time.Now().Unix(),
		Message: message,
		Deps:    tx.base.Clone(),
		Ops:     tx.ops,
	}
	if c.Deps == nil {
		c.Deps = []ChangeHash{}
	}
	hash := c.Hash()
	if err := d.integrate(c, hash); err != nil {
		// Every op was checked against the view it was built from.
		panic(fmt.Sprintf("document: committing local change: %v", err))
	}
	return hash, true
}

// Rollback discards the transaction.
func (tx *Transaction) Rollback() {
	tx.closed = true
	tx.ops = nil
}

func joinValues(values []string) string {
	n := 0
	for _, v := range values {
		n += len(v)
	}
	b := make([]byte, 0, n)
	for _, v := range values {
		b = append(b, v...)
	}
	return string(b)
}
