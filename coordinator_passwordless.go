package authflow

import (
	"context"

	"github.com/MrEthical07/authflow/deeplink"
	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/MrEthical07/authflow/internal/task"
	"github.com/MrEthical07/authflow/internal/validate"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PasswordlessCoordinator verifies an identifier with a one-time code sent to
// it. Sign-ups continue with terms and profile after the code is accepted.
type PasswordlessCoordinator struct {
	coordinatorBase
	sending  pendingTask
	resend   *rate.Limiter
	accepted *User
}

// NewPasswordlessCoordinator builds a coordinator; Start sends the first code.
func NewPasswordlessCoordinator(env CoordinatorEnv, in CoordinatorInput) *PasswordlessCoordinator {
	limit := rate.Inf
	if env.Config.Code.ResendInterval > 0 {
		limit = rate.Every(env.Config.Code.ResendInterval)
	}
	return &PasswordlessCoordinator{
		coordinatorBase: coordinatorBase{env: env, in: in},
		resend:          rate.NewLimiter(limit, max(env.Config.Code.ResendBurst, 1)),
	}
}

func (c *PasswordlessCoordinator) Start() {
	c.begin(ScreenCode)
	c.resend.AllowN(c.env.Now(), 1)
	c.sendCode()
}

func (c *PasswordlessCoordinator) Stop() {
	c.stop()
	if c.sending != nil && c.sending.Pending() {
		c.sending.Cancel()
		c.env.Container.SetLoading(ScreenCode, false)
	}
}

func (c *PasswordlessCoordinator) Handle(action Action) error {
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
	case ActionSubmitCode:
		if c.top() == ScreenCode && c.accepted == nil {
			return c.submitCode(action.Value, true)
		}
	case ActionResendCode:
		if c.top() == ScreenCode && c.accepted == nil {
			return c.resendCode()
		}
	case ActionSubmitProfile:
		if c.top() == ScreenProfile && c.accepted != nil {
			return c.completeProfile(action.Profile)
		}
	}
	return ErrActionNotSupported
}

// HandleRoute absorbs a code link while a sign-in is waiting for its code.
// Sign-up codes and codes arriving after acceptance go to the orchestrator,
// which completes the flow with the validated user.
func (c *PasswordlessCoordinator) HandleRoute(route deeplink.Route) RouteHandleResult {
	switch route.Kind {
	case deeplink.RouteValidateAuthCode:
		if c.accepted != nil || c.in.Variant != VariantSignin {
			return RouteCannotHandle
		}
		c.cancelPending()
		c.env.Container.PopTo(ScreenCode)
		// A malformed code is already reported inline; the route stays consumed.
		_ = c.submitCode(route.Code, route.PersistUser)
		return RouteHandled
	case deeplink.RouteLogin, deeplink.RouteEnterPassword:
		return RouteResetRequest
	default:
		return RouteCannotHandle
	}
}

func (c *PasswordlessCoordinator) sendCode() {
	if c.sending != nil {
		c.sending.Cancel()
	}
	c.env.Container.SetLoading(ScreenCode, true)
	c.sending = task.Go(c.env.Context, c.env.Executor,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.env.Authenticator.SendCode(ctx, c.in.Identifier, c.in.IdentifierType, c.in.Variant)
		},
		func(_ struct{}, err error) {
			c.env.Container.SetLoading(ScreenCode, false)
			if err != nil {
				c.env.Logger.Warn("sending verification code failed",
					zap.String("identifier", logging.MaskIdentifier(c.in.Identifier)), zap.Error(err))
				c.emitError(err)
			}
		})
}

func (c *PasswordlessCoordinator) resendCode() error {
	if !c.resend.AllowN(c.env.Now(), 1) {
		return c.reject(ErrResendTooSoon)
	}
	c.sendCode()
	return nil
}

func (c *PasswordlessCoordinator) submitCode(raw string, persistUser bool) error {
	code, err := validate.Code(raw, c.env.Config.Code.Length)
	if err != nil {
		return c.reject(newValidationError("code", ErrInvalidCode, err))
	}
	c.startLoading(ScreenCode)
	c.pending = task.Go(c.env.Context, c.env.Executor,
		func(ctx context.Context) (User, error) {
			return c.env.CodeValidator.Validate(ctx, code, persistUser)
		},
		func(user User, err error) {
			c.env.Container.SetLoading(ScreenCode, false)
			if err != nil {
				c.emitError(err)
				return
			}
			c.accepted = &user
			if c.in.Variant == VariantSignin {
				c.emit(AuthCoordinatorOutput{Kind: CoordinatorSuccess, User: &user})
				return
			}
			c.push(ScreenTerms)
		})
	return nil
}

func (c *PasswordlessCoordinator) completeProfile(profile Profile) error {
	if err := c.checkBirthDate(profile); err != nil {
		return err
	}
	accepted := *c.accepted
	c.startLoading(ScreenProfile)
	c.pending = task.Go(c.env.Context, c.env.Executor,
		func(ctx context.Context) (User, error) {
			return c.env.Authenticator.CompleteProfile(ctx, accepted, profile)
		},
		func(user User, err error) {
			c.env.Container.SetLoading(ScreenProfile, false)
			if err != nil {
				c.emitError(err)
				return
			}
			c.emit(AuthCoordinatorOutput{Kind: CoordinatorSuccess, User: &user})
		})
	return nil
}
