package authflow

import (
	"context"
	"time"

	"github.com/MrEthical07/authflow/deeplink"
	"github.com/MrEthical07/authflow/internal/validate"
	"go.uber.org/zap"
)

// AuthCoordinator drives the screens of one authentication method and
// terminates with an [AuthCoordinatorOutput].
//
// Coordinators run on the host executor. They push their screens onto the
// shared Container above the identifier root and never pop below the depth
// they started at.
type AuthCoordinator interface {
	Start()
	Handle(action Action) error
	HandleRoute(route deeplink.Route) RouteHandleResult
	OnOutput(fn func(AuthCoordinatorOutput))
	Stop()
}

// CoordinatorInput is what a coordinator is spawned with.
type CoordinatorInput struct {
	Identifier     string
	IdentifierType IdentifierType
	Variant        FlowVariant
	Scopes         []string
	Prefilled      bool
}

// CoordinatorEnv carries the collaborators shared by every coordinator of a flow.
type CoordinatorEnv struct {
	Context       context.Context
	Executor      Executor
	Container     *Container
	Authenticator Authenticator
	CodeValidator CodeValidator
	Logger        *zap.Logger
	Config        Config
	Now           func() time.Time
}

// CoordinatorFactory builds the coordinator for one authentication type.
type CoordinatorFactory func(env CoordinatorEnv, in CoordinatorInput) AuthCoordinator

func defaultCoordinatorFactories() map[AuthenticationType]CoordinatorFactory {
	return map[AuthenticationType]CoordinatorFactory{
		AuthPassword: func(env CoordinatorEnv, in CoordinatorInput) AuthCoordinator {
			return NewPasswordCoordinator(env, in)
		},
		AuthPasswordless: func(env CoordinatorEnv, in CoordinatorInput) AuthCoordinator {
			return NewPasswordlessCoordinator(env, in)
		},
	}
}

type pendingTask interface {
	Cancel()
	Pending() bool
}

// coordinatorBase holds the state shared by both coordinator variants.
type coordinatorBase struct {
	env     CoordinatorEnv
	in      CoordinatorInput
	output  func(AuthCoordinatorOutput)
	depth   int
	stopped bool
	pending pendingTask
	// pendingOn is the screen showing loading for pending.
	pendingOn ScreenKind
}

func (c *coordinatorBase) OnOutput(fn func(AuthCoordinatorOutput)) {
	c.output = fn
}

func (c *coordinatorBase) emit(out AuthCoordinatorOutput) {
	if c.stopped || c.output == nil {
		return
	}
	c.output(out)
}

func (c *coordinatorBase) emitError(err error) {
	c.emit(AuthCoordinatorOutput{Kind: CoordinatorError, Err: err})
}

// begin records the stack depth below the coordinator's first screen.
func (c *coordinatorBase) begin(first ScreenKind) {
	c.depth = c.env.Container.Len()
	c.push(first)
}

func (c *coordinatorBase) push(kind ScreenKind) {
	c.env.Container.Push(c.screen(kind))
}

func (c *coordinatorBase) screen(kind ScreenKind) Screen {
	return Screen{
		Kind:           kind,
		Identifier:     c.in.Identifier,
		IdentifierType: c.in.IdentifierType,
		Variant:        c.in.Variant,
		Scopes:         append([]string(nil), c.in.Scopes...),
	}
}

func (c *coordinatorBase) top() ScreenKind {
	return c.env.Container.Top().Kind
}

func (c *coordinatorBase) owns(kind ScreenKind) bool {
	screens := c.env.Container.Screens()
	for i := c.depth; i < len(screens); i++ {
		if screens[i].Kind == kind {
			return true
		}
	}
	return false
}

// back pops one of the coordinator's screens, or asks the parent to go back
// when the first screen is visible.
func (c *coordinatorBase) back() {
	if c.env.Container.Len() > c.depth+1 {
		c.env.Container.Pop()
		return
	}
	c.emit(AuthCoordinatorOutput{Kind: CoordinatorBack})
}

func (c *coordinatorBase) busy() bool {
	return c.pending != nil && c.pending.Pending()
}

func (c *coordinatorBase) stop() {
	c.stopped = true
	c.cancelPending()
}

// startLoading marks kind as busy for the request about to be assigned to pending.
func (c *coordinatorBase) startLoading(kind ScreenKind) {
	c.pendingOn = kind
	c.env.Container.SetLoading(kind, true)
}

// cancelPending drops the in-flight request and clears the loading state it
// set, since a cancelled request never runs its completion.
func (c *coordinatorBase) cancelPending() {
	if !c.busy() {
		return
	}
	c.pending.Cancel()
	c.env.Container.SetLoading(c.pendingOn, false)
}

// reject shows a local validation failure on the visible step.
func (c *coordinatorBase) reject(err error) error {
	c.env.Container.ShowError(err)
	return err
}

func (c *coordinatorBase) checkBirthDate(p Profile) error {
	_, err := validate.BirthDate(p.BirthDate, c.env.Config.Profile.BirthDateLayout, c.env.Config.Profile.MinimumAge, c.env.Now())
	if err != nil {
		return c.reject(newValidationError("birth_date", ErrInvalidBirthDate, err))
	}
	return nil
}

// common handles the actions every coordinator treats the same way.
func (c *coordinatorBase) common(action Action) (bool, error) {
	switch action.Kind {
	case ActionBack:
		c.back()
	case ActionCancel:
		c.emit(AuthCoordinatorOutput{Kind: CoordinatorCancel})
	case ActionChangeIdentifier:
		c.emit(AuthCoordinatorOutput{Kind: CoordinatorChangeIdentifier})
	case ActionDeclineTerms:
		if c.top() != ScreenTerms {
			return true, ErrActionNotSupported
		}
		c.emit(AuthCoordinatorOutput{Kind: CoordinatorCancel})
	case ActionAcceptTerms:
		if c.top() != ScreenTerms {
			return true, ErrActionNotSupported
		}
		c.push(ScreenProfile)
	default:
		return false, nil
	}
	return true, nil
}
