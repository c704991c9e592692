package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Loop runs posted functions serially on one goroutine.
// The queue is unbounded so that Post never blocks, including when a running
// function posts follow-up work.
type Loop struct {
	logger       *zap.Logger
	panicHandler PanicHandler

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	stopped bool

	running  atomic.Bool
	stopOnce sync.Once

	// Stats
	posted      atomic.Uint64
	executed    atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPanicHandler sets the panic handler. The default logs the panic.
func WithPanicHandler(h PanicHandler) Option {
	return func(l *Loop) {
		l.panicHandler = h
	}
}

// New creates a loop. It does nothing until Run is called; functions posted
// before that are kept and run in order.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: zap.NewNop(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.panicHandler == nil {
		l.panicHandler = func(v any, stack []byte) {
			l.logger.Error("loop task panicked",
				zap.Any("panic", v),
				zap.ByteString("stack", stack))
		}
	}
	return l
}

// Run executes posted functions until ctx is cancelled or Stop is called.
// It returns nil after Stop and ctx.Err() after cancellation. Functions still
// queued when Run returns are dropped. A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.finish()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.run(fn)

			select {
			case <-l.stop:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		select {
		case <-l.wake:
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) run(fn func()) {
	res := execute(fn, l.panicHandler)
	l.executed.Add(1)
	l.totalTimeNs.Add(res.duration.Nanoseconds())
	if res.panicked {
		l.panicked.Add(1)
	}
}

func (l *Loop) finish() {
	l.mu.Lock()
	l.stopped = true
	l.dropped.Add(uint64(len(l.queue)))
	l.queue = nil
	l.mu.Unlock()

	l.running.Store(false)
	close(l.done)
}

// Post queues fn to run on the loop. Functions posted after the loop has
// stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.dropped.Add(1)
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.posted.Add(1)

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Invoke runs fn on the loop and waits for it to return. It returns fn's
// error, a *PanicError if fn panicked, ctx.Err() if ctx ends first, or
// ErrStopped if the loop stops before fn runs.
func (l *Loop) Invoke(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	errc := make(chan error, 1)
	l.Post(func() {
		var err error
		res := execute(func() { err = fn() }, nil)
		if res.panicked {
			l.panicked.Add(1)
			l.panicHandler(res.panicValue, res.panicStack)
			err = &PanicError{Value: res.panicValue, Stack: res.panicStack}
		}
		errc <- err
	})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// Stop makes Run return after the function currently executing, if any.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// IsRunning returns true while Run is executing.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// QueueDepth returns the number of functions waiting to run.
func (l *Loop) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stats contains loop statistics.
type Stats struct {
	// Posted is the number of functions accepted by Post.
	Posted uint64

	// Executed is the number of functions that have run.
	Executed uint64

	// Panicked is the number of functions that panicked.
	Panicked uint64

	// Dropped is the number of functions discarded because the loop stopped.
	Dropped uint64

	// QueueDepth is the number of functions waiting to run.
	QueueDepth int

	// TotalDuration is the cumulative time spent running functions.
	TotalDuration time.Duration
}

// Stats returns loop statistics.
func (l *Loop) Stats() Stats {
	return Stats{
		Posted:        l.posted.Load(),
		Executed:      l.executed.Load(),
		Panicked:      l.panicked.Load(),
		Dropped:       l.dropped.Load(),
		QueueDepth:    l.QueueDepth(),
		TotalDuration: time.Duration(l.totalTimeNs.Load()),
	}
}
