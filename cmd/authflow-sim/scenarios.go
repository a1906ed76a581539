package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/identity"
)

const simPassword = "correct-horse-battery"

var simProfile = authflow.Profile{DisplayName: "Sim User", BirthDate: "1985-06-15"}

// scenario scripts one flow. Screen handling is shared; the fields pick the
// entry point and the detours taken on the way.
type scenario struct {
	name     string
	method   authflow.LoginMethod
	seed     bool
	forgot   bool
	headless bool
}

var scenarios = []scenario{
	{name: "passwordless-signup", method: authflow.EmailMethod()},
	{name: "passwordless-signin", method: authflow.EmailMethod(), seed: true},
	{name: "password-signup", method: authflow.PasswordMethod()},
	{name: "password-signin", method: authflow.PasswordMethod(), seed: true},
	{name: "password-reset", method: authflow.PasswordMethod(), seed: true, forgot: true},
	{name: "deeplink", headless: true},
}

func scenarioByName(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func scenarioNames() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.name
	}
	return names
}

// run drives one flow on d for identifier and returns its output.
func (s scenario) run(ctx context.Context, d *device, identifier string) (authflow.Output, error) {
	if s.seed {
		_, err := d.mgr.SignUp(ctx, authflow.SignUpRequest{
			Identifier:     identifier,
			IdentifierType: authflow.IdentifierEmail,
			Password:       simPassword,
			Profile:        simProfile,
		})
		if err != nil {
			return authflow.Output{}, fmt.Errorf("seed account: %w", err)
		}
	}
	if s.headless {
		return s.runHeadless(ctx, d, identifier)
	}

	err := d.do(ctx, func() error {
		d.host.Present(s.method, d.surface, nil, []string{"openid"}, d.complete)
		return nil
	})
	if err != nil {
		return authflow.Output{}, err
	}

	var (
		last   screenEvent
		forgot = s.forgot
	)
	for {
		select {
		case out := <-d.outputs:
			return out, nil
		case err := <-d.surface.errs:
			return authflow.Output{}, fmt.Errorf("flow reported error: %w", err)
		case <-ctx.Done():
			return authflow.Output{}, ctx.Err()
		case ev := <-d.surface.events:
			if ev.top.Kind == last.top.Kind && ev.depth == last.depth {
				continue
			}
			last = ev
			if ev.top.Kind == authflow.ScreenPassword && forgot {
				forgot = false
				if err := d.dispatch(ctx, authflow.Action{Kind: authflow.ActionForgotPassword}); err != nil {
					return authflow.Output{}, err
				}
				continue
			}
			if err := s.answer(ctx, d, ev.top, identifier); err != nil {
				return authflow.Output{}, fmt.Errorf("%s step: %w", ev.top.Kind, err)
			}
		}
	}
}

func (s scenario) answer(ctx context.Context, d *device, screen authflow.Screen, identifier string) error {
	switch screen.Kind {
	case authflow.ScreenIdentifier:
		return d.dispatch(ctx, authflow.SubmitIdentifier(identifier))
	case authflow.ScreenPassword, authflow.ScreenCreatePassword:
		return d.dispatch(ctx, authflow.SubmitPassword(simPassword))
	case authflow.ScreenCode:
		msg, err := d.awaitMessage(ctx, identity.MessageCode)
		if err != nil {
			return err
		}
		return d.dispatch(ctx, authflow.SubmitCode(msg.Code))
	case authflow.ScreenTerms:
		return d.dispatch(ctx, authflow.Action{Kind: authflow.ActionAcceptTerms})
	case authflow.ScreenProfile:
		return d.dispatch(ctx, authflow.SubmitProfile(simProfile))
	case authflow.ScreenResetLinkSent:
		msg, err := d.awaitMessage(ctx, identity.MessagePasswordReset)
		if err != nil {
			return err
		}
		return d.do(ctx, func() error {
			_, err := d.host.OpenURL(msg.Link, d.surface, d.complete)
			return err
		})
	}
	return fmt.Errorf("no script for screen %s", screen.Kind)
}

// runHeadless mails a sign-up code and redeems its link at launch without
// presenting anything.
func (s scenario) runHeadless(ctx context.Context, d *device, identifier string) (authflow.Output, error) {
	if err := d.mgr.SendCode(ctx, identifier, authflow.IdentifierEmail, authflow.VariantSignup); err != nil {
		return authflow.Output{}, fmt.Errorf("send code: %w", err)
	}
	msg, err := d.awaitMessage(ctx, identity.MessageCode)
	if err != nil {
		return authflow.Output{}, err
	}
	err = d.do(ctx, func() error {
		payload, err := d.host.OpenURL(msg.Link, nil, nil)
		if err != nil {
			return err
		}
		if payload.Launch == nil {
			return errors.New("link carries no launch payload")
		}
		return d.host.Launch(*payload.Launch, nil, d.complete)
	})
	if err != nil {
		return authflow.Output{}, err
	}
	return d.awaitOutput(ctx)
}
