package buffer

// Observer receives notifications of buffer edits. Callbacks run on the
// goroutine that made the edit, after the edit is visible and without any
// buffer lock held, so an observer may read or edit the buffer.
type Observer interface {
	// Inserted reports text inserted at offset.
	Inserted(offset Offset, text string)

	// Deleted reports the removal of [start, end).
	Deleted(start, end Offset)
}

// ObserverFuncs adapts a pair of functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnInsert func(offset Offset, text string)
	OnDelete func(start, end Offset)
}

// Inserted implements Observer.
func (f ObserverFuncs) Inserted(offset Offset, text string) {
	if f.OnInsert != nil {
		f.OnInsert(offset, text)
	}
}

// Deleted implements Observer.
func (f ObserverFuncs) Deleted(start, end Offset) {
	if f.OnDelete != nil {
		f.OnDelete(start, end)
	}
}

type observerEntry struct {
	o Observer
}

// Observe registers o and returns a function that unregisters it.
// Observers are notified in registration order.
func (b *Buffer) Observe(o Observer) (cancel func()) {
	e := &observerEntry{o: o}
	b.obsMu.Lock()
	b.observers = append(b.observers, e)
	b.obsMu.Unlock()

	return func() {
		b.obsMu.Lock()
		defer b.obsMu.Unlock()
		for i, x := range b.observers {
			if x == e {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// ObserverCount returns the number of registered observers.
func (b *Buffer) ObserverCount() int {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	return len(b.observers)
}

func (b *Buffer) snapshotObservers() []*observerEntry {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	return b.observers
}

func (b *Buffer) notifyInserted(offset Offset, text string) {
	for _, e := range b.snapshotObservers() {
		e.o.Inserted(offset, text)
	}
}

func (b *Buffer) notifyDeleted(start, end Offset) {
	for _, e := range b.snapshotObservers() {
		e.o.Deleted(start, end)
	}
}
