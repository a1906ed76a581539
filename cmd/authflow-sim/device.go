package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/identity"
	"go.uber.org/zap"
)

// screenEvent is the stack shape after a Present or Render.
type screenEvent struct {
	top   authflow.Screen
	depth int
}

// scriptedSurface forwards every stack change to the driving goroutine. It
// runs on the device loop and never blocks it.
type scriptedSurface struct {
	events chan screenEvent
	errs   chan error
}

func newScriptedSurface() *scriptedSurface {
	return &scriptedSurface{
		events: make(chan screenEvent, 64),
		errs:   make(chan error, 16),
	}
}

func (s *scriptedSurface) publish(screens []authflow.Screen) {
	if len(screens) == 0 {
		return
	}
	select {
	case s.events <- screenEvent{top: screens[len(screens)-1], depth: len(screens)}:
	default:
	}
}

func (s *scriptedSurface) Present(c *authflow.Container, _ bool) { s.publish(c.Screens()) }

func (s *scriptedSurface) Dismiss(_ bool, done func()) { done() }

func (s *scriptedSurface) Render(screens []authflow.Screen, _ bool) { s.publish(screens) }

func (s *scriptedSurface) SetLoading(authflow.ScreenKind, bool) {}

func (s *scriptedSurface) ShowInlineError(_ authflow.ScreenKind, err error) bool {
	s.report(err)
	return true
}

func (s *scriptedSurface) ShowBlockingError(err error) { s.report(err) }

func (s *scriptedSurface) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// device is one simulated client: a host on its own event loop, backed by a
// manager whose outbox stands in for the user's inbox.
type device struct {
	loop    *authflow.Loop
	host    *authflow.Host
	mgr     *identity.Manager
	outbox  *identity.Outbox
	surface *scriptedSurface
	outputs chan authflow.Output
}

func newDevice(env *simEnv) (*device, error) {
	outbox := identity.NewOutbox(8)
	mgr, err := identity.New(env.rdb, env.identity,
		identity.WithNotifier(outbox),
		identity.WithLogger(env.logger))
	if err != nil {
		return nil, err
	}

	loop := authflow.NewLoop(64, authflow.WithLoopPanicHandler(func(v any) {
		env.logger.Error("device loop panic", zap.Any("panic", v))
	}))
	host, err := authflow.New().
		WithConfig(env.config).
		WithExecutor(loop).
		WithLogger(env.logger).
		WithStatusFetcher(mgr).
		WithCodeValidator(mgr).
		WithAuthenticator(mgr).
		WithIdentityManager(mgr).
		WithTermsProvider(mgr).
		WithFatalHandler(func(err error) {
			env.logger.Error("flow precondition violated", zap.Error(err))
		}).
		Build()
	if err != nil {
		return nil, err
	}
	// The loop outlives the flow context so close can always drain it.
	loop.Start(context.Background())

	return &device{
		loop:    loop,
		host:    host,
		mgr:     mgr,
		outbox:  outbox,
		surface: newScriptedSurface(),
		outputs: make(chan authflow.Output, 1),
	}, nil
}

func (d *device) complete(out authflow.Output) {
	select {
	case d.outputs <- out:
	default:
	}
}

// do runs fn on the device loop and waits for its result.
func (d *device) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	d.loop.Post(func() { errc <- fn() })
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *device) dispatch(ctx context.Context, action authflow.Action) error {
	return d.do(ctx, func() error { return d.host.Dispatch(action) })
}

// awaitMessage waits for the next outbox delivery of kind.
func (d *device) awaitMessage(ctx context.Context, kind identity.MessageKind) (identity.Message, error) {
	for {
		select {
		case msg := <-d.outbox.C():
			if msg.Kind == kind {
				return msg, nil
			}
		case <-ctx.Done():
			return identity.Message{}, fmt.Errorf("waiting for %s message: %w", kind, ctx.Err())
		}
	}
}

func (d *device) awaitOutput(ctx context.Context) (authflow.Output, error) {
	select {
	case out := <-d.outputs:
		return out, nil
	case <-ctx.Done():
		return authflow.Output{}, fmt.Errorf("waiting for output: %w", ctx.Err())
	}
}

func (d *device) close() {
	d.loop.Post(d.host.Close)
	d.loop.Stop()
}

var errUnexpectedOutput = errors.New("unexpected flow output")
