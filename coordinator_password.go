package authflow

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authflow/deeplink"
	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/MrEthical07/authflow/internal/task"
	"github.com/MrEthical07/authflow/internal/validate"
	"go.uber.org/zap"
)

// PasswordCoordinator verifies an identifier with a password. Sign-ins show the
// password step; sign-ups create a password, accept terms and complete a profile.
type PasswordCoordinator struct {
	coordinatorBase
	password string
}

// NewPasswordCoordinator builds a coordinator; Start shows its first screen.
func NewPasswordCoordinator(env CoordinatorEnv, in CoordinatorInput) *PasswordCoordinator {
	return &PasswordCoordinator{coordinatorBase: coordinatorBase{env: env, in: in}}
}

func (c *PasswordCoordinator) Start() {
	if c.in.Variant == VariantSignup {
		c.begin(ScreenCreatePassword)
		return
	}
	c.begin(ScreenPassword)
}

func (c *PasswordCoordinator) Stop() {
	c.stop()
}

func (c *PasswordCoordinator) Handle(action Action) error {
	if c.stopped {
		return ErrFlowCompleted
	}
	if c.busy() {
		return ErrSubmissionInFlight
	}
	if handled, err := c.common(action); handled {
		return err
	}

	switch action.Kind {
	case ActionSubmitPassword:
		switch c.top() {
		case ScreenPassword:
			return c.signIn(action.Value)
		case ScreenCreatePassword:
			return c.createPassword(action.Value)
		}
	case ActionForgotPassword:
		if c.top() == ScreenPassword {
			c.requestReset()
			return nil
		}
	case ActionSubmitProfile:
		if c.top() == ScreenProfile {
			return c.signUp(action.Profile)
		}
	}
	return ErrActionNotSupported
}

// HandleRoute returns to the password step for the same identifier and asks
// for a reset otherwise. Codes are left to the orchestrator.
func (c *PasswordCoordinator) HandleRoute(route deeplink.Route) RouteHandleResult {
	switch route.Kind {
	case deeplink.RouteEnterPassword:
		if c.in.Variant == VariantSignin && strings.EqualFold(route.Identifier, c.in.Identifier) && c.owns(ScreenPassword) {
			c.cancelPending()
			c.env.Container.PopTo(ScreenPassword)
			return RouteHandled
		}
		return RouteResetRequest
	case deeplink.RouteLogin:
		return RouteResetRequest
	default:
		return RouteCannotHandle
	}
}

func (c *PasswordCoordinator) signIn(password string) error {
	if password == "" {
		return c.reject(newValidationError("password", ErrInvalidCredentials, nil))
	}
	c.startLoading(ScreenPassword)
	c.pending = task.Go(c.env.Context, c.env.Executor,
		func(ctx context.Context) (User, error) {
			return c.env.Authenticator.SignIn(ctx, c.in.Identifier, password, c.in.Scopes)
		},
		func(user User, err error) {
			c.env.Container.SetLoading(ScreenPassword, false)
			if err != nil {
				c.env.Logger.Debug("password sign-in failed",
					zap.String("identifier", logging.MaskIdentifier(c.in.Identifier)), zap.Error(err))
				c.emitError(err)
				return
			}
			c.emit(AuthCoordinatorOutput{Kind: CoordinatorSuccess, User: &user})
		})
	return nil
}

func (c *PasswordCoordinator) createPassword(password string) error {
	if err := validate.Password(password, c.env.Config.Password.MinLength); err != nil {
		return c.reject(newValidationError("password", ErrPasswordTooShort, err))
	}
	c.password = password
	c.push(ScreenTerms)
	return nil
}

func (c *PasswordCoordinator) requestReset() {
	c.startLoading(ScreenPassword)
	c.pending = task.Go(c.env.Context, c.env.Executor,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.env.Authenticator.RequestPasswordReset(ctx, c.in.Identifier)
		},
		func(_ struct{}, err error) {
			c.env.Container.SetLoading(ScreenPassword, false)
			if err != nil {
				c.emitError(err)
				return
			}
			c.push(ScreenResetLinkSent)
		})
}

func (c *PasswordCoordinator) signUp(profile Profile) error {
	if err := c.checkBirthDate(profile); err != nil {
		return err
	}
	req := SignUpRequest{
		Identifier:     c.in.Identifier,
		IdentifierType: c.in.IdentifierType,
		Password:       c.password,
		Profile:        profile,
		Scopes:         append([]string(nil), c.in.Scopes...),
	}
	c.startLoading(ScreenProfile)
	c.pending = task.Go(c.env.Context, c.env.Executor,
		func(ctx context.Context) (User, error) {
			return c.env.Authenticator.SignUp(ctx, req)
		},
		func(user User, err error) {
			c.env.Container.SetLoading(ScreenProfile, false)
			switch {
			case errors.Is(err, ErrAccountExists):
				c.emit(AuthCoordinatorOutput{Kind: CoordinatorReset, Err: err})
			case err != nil:
				c.emitError(err)
			default:
				c.emit(AuthCoordinatorOutput{Kind: CoordinatorSuccess, User: &user})
			}
		})
	return nil
}
