package authflow

import "github.com/MrEthical07/authflow/internal/mainloop"

type (
	// Executor runs posted functions one at a time, in post order. All flow
	// state of a [Host] is confined to its executor. A UI toolkit's main
	// thread dispatcher satisfies it directly.
	Executor = mainloop.Executor
	// Loop is a goroutine-backed Executor for hosts without a main thread.
	Loop = mainloop.Loop
	// ManualExecutor queues posted functions until drained, for tests and
	// deterministic drivers.
	ManualExecutor = mainloop.Manual
	LoopOption     = mainloop.Option
)

// NewLoop returns a stopped loop; call Start before building the host.
func NewLoop(buffer int, opts ...LoopOption) *Loop { return mainloop.New(buffer, opts...) }

func NewManualExecutor() *ManualExecutor { return mainloop.NewManual() }

// WithLoopPanicHandler recovers panics raised by posted functions.
func WithLoopPanicHandler(fn func(any)) LoopOption { return mainloop.WithPanicHandler(fn) }
