package audit

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Config sizes the relay queue and picks the backpressure policy.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events when the queue is full instead of making the
	// emitting flow wait.
	DropIfFull bool
}

// Dispatcher relays flow events to one sink on a dedicated goroutine so a
// slow sink never stalls the flow executor. A nil *Dispatcher is a valid
// disabled dispatcher.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue   chan Event
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once

	closing   atomic.Bool
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the relay. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer d.stopped.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush delivers what is already queued; later emits see closing and return.
func (d *Dispatcher) flush() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver isolates the relay from a panicking sink; the event counts as dropped.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.dropped.Inc()
		}
	}()
	d.sink.Emit(context.Background(), ev)
	d.delivered.Inc()
}

// Emit queues ev. When the queue is full, DropIfFull drops and counts it;
// otherwise Emit waits for room, ctx, or Close.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Inc()
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Inc()
	case <-d.stop:
	}
}

// Close flushes queued events and waits for the relay to exit. Safe to call twice.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

// Dropped counts events shed under backpressure, canceled while waiting, or
// lost to a panicking sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
