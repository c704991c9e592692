package buffer

// Option is a functional option for configuring a Buffer.
type Option func(*Buffer)

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(b *Buffer) {
		if o != nil {
			b.observers = append(b.observers, &observerEntry{o: o})
		}
	}
}
