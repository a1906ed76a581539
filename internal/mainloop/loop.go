package mainloop

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Executor runs posted functions one at a time, in post order.
type Executor interface {
	Post(fn func())
}

// Loop is a goroutine-backed Executor. Functions posted after Stop are dropped.
type Loop struct {
	queue   chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool
	once    sync.Once
	panicFn func(any)
}

// Option customizes a Loop.
type Option func(*Loop)

// WithPanicHandler installs a handler for panics raised by posted functions.
// Without one the panic propagates and terminates the process.
func WithPanicHandler(fn func(any)) Option {
	return func(l *Loop) { l.panicFn = fn }
}

// New returns a stopped loop with the given queue capacity.
func New(buffer int, opts ...Option) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	l := &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs the loop on a new goroutine until Stop or ctx cancellation.
func (l *Loop) Start(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()
}

func (l *Loop) run(ctx context.Context) {
	for {
		select {
		case fn := <-l.queue:
			l.invoke(fn)
		case <-ctx.Done():
			return
		case <-l.done:
			for {
				select {
				case fn := <-l.queue:
					l.invoke(fn)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) invoke(fn func()) {
	if l.panicFn != nil {
		defer func() {
			if r := recover(); r != nil {
				l.panicFn(r)
			}
		}()
	}
	fn()
}

// Post enqueues fn. It blocks while the queue is full.
func (l *Loop) Post(fn func()) {
	if fn == nil || l.stopped.Load() {
		return
	}
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Stop drains already queued functions and waits for the loop goroutine to exit.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.done)
		l.wg.Wait()
	})
}

// Manual is an Executor driven explicitly by its owner through Drain. Hosts that
// already own a UI tick can call Drain from it; tests use it for determinism.
type Manual struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// NewManual returns an empty manual executor.
func NewManual() *Manual {
	return &Manual{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. Safe to call from any goroutine.
func (m *Manual) Post(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Drain runs queued functions, including ones they post, until the queue is empty.
// It returns the number of functions run.
func (m *Manual) Drain() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		fn()
		n++
	}
}

// Len reports the number of queued functions.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Wait blocks until something is posted or ctx is done.
func (m *Manual) Wait(ctx context.Context) error {
	if m.Len() > 0 {
		return nil
	}
	select {
	case <-m.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainUntil alternates Wait and Drain until cond holds or ctx is done.
func (m *Manual) DrainUntil(ctx context.Context, cond func() bool) error {
	for {
		m.Drain()
		if cond() {
			return nil
		}
		if err := m.Wait(ctx); err != nil {
			return err
		}
	}
}
