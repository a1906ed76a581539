// Package task provides cancellable futures whose completion is delivered on a
// confined executor.
package task

import (
	"context"

	"github.com/MrEthical07/authflow/internal/mainloop"
	"go.uber.org/atomic"
)

// Task is one outstanding asynchronous request. The zero value is not usable;
// create tasks with Go.
type Task[T any] struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	finished  atomic.Bool
}

// Go runs fn on a new goroutine and posts done(result, err) to exec once fn
// returns, unless the task was cancelled first. Cancel must be called from the
// executor for the drop guarantee to hold.
func Go[T any](
	parent context.Context,
	exec mainloop.Executor,
	fn func(context.Context) (T, error),
	done func(T, error),
) *Task[T] {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	t := &Task[T]{cancel: cancel}

	go func() {
		v, err := fn(ctx)
		exec.Post(func() {
			defer cancel()
			if t.cancelled.Load() {
				return
			}
			t.finished.Store(true)
			if done != nil {
				done(v, err)
			}
		})
	}()
	return t
}

// Cancel drops the pending result and cancels the request context. It is a no-op
// on a nil or finished task.
func (t *Task[T]) Cancel() {
	if t == nil || t.finished.Load() {
		return
	}
	t.cancelled.Store(true)
	t.cancel()
}

// Pending reports whether the task has neither delivered nor been cancelled.
func (t *Task[T]) Pending() bool {
	return t != nil && !t.finished.Load() && !t.cancelled.Load()
}
