package authflow

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/deeplink"
	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/MrEthical07/authflow/internal/task"
	"github.com/MrEthical07/authflow/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator runs one flow: identifier entry, flow-variant resolution, one
// child coordinator at a time and a single terminal Output. Instances are
// created by [Host.Start] and live in the host's active slot until they complete.
type Orchestrator struct {
	host       *Host
	id         string
	input      Input
	surface    PresentationSurface
	container  *Container
	completion CompletionFunc
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	authType       AuthenticationType
	identifierType IdentifierType
	identifier     string
	teaser         string
	scopes         []string
	variant        FlowVariant
	resolved       bool

	child      *childFlowAdapter
	statusTask *task.Task[Status]
	codeTask   *task.Task[User]
	codeOn     ScreenKind

	startedAt  time.Time
	completing bool
	delivered  bool
}

func newOrchestrator(h *Host, input Input, method LoginMethod, completion CompletionFunc) *Orchestrator {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(WithFlowID(h.ctx, id))

	scopes := input.Scopes
	if len(scopes) == 0 {
		scopes = h.cfg.Flow.DefaultScopes
	}
	o := &Orchestrator{
		host:           h,
		id:             id,
		input:          input,
		surface:        input.Surface,
		completion:     completion,
		logger:         h.logger.With(zap.String("flow_id", id)),
		ctx:            ctx,
		cancel:         cancel,
		authType:       method.AuthenticationType(),
		identifierType: method.IdentifierType(),
		identifier:     method.Prefill(),
		scopes:         append([]string(nil), scopes...),
		startedAt:      h.now(),
	}
	if input.Teaser != nil {
		o.teaser = *input.Teaser
	}
	return o
}

// ID returns the flow identifier attached to collaborator contexts.
func (o *Orchestrator) ID() string { return o.id }

// Container returns the navigation stack of the flow.
func (o *Orchestrator) Container() *Container { return o.container }

// Variant returns the resolved flow variant; ok is false before resolution.
func (o *Orchestrator) Variant() (FlowVariant, bool) { return o.variant, o.resolved }

// HasChild reports whether a coordinator is live.
func (o *Orchestrator) HasChild() bool { return o.child != nil }

// Completed reports whether the flow has started completing.
func (o *Orchestrator) Completed() bool { return o.completing }

func (o *Orchestrator) present() {
	o.container = newContainer(o.surface, o.identifierScreen(o.identifier), o.host.cfg.Flow.Animated)
	o.surface.Present(o.container, o.host.cfg.Flow.Animated)
}

func (o *Orchestrator) identifierScreen(identifier string) Screen {
	return Screen{
		Kind:           ScreenIdentifier,
		Identifier:     identifier,
		IdentifierType: o.identifierType,
		Teaser:         o.teaser,
		Scopes:         append([]string(nil), o.scopes...),
	}
}

// Dispatch routes a user action to the live coordinator, or handles it on the
// identifier step when no coordinator exists.
func (o *Orchestrator) Dispatch(action Action) error {
	if o.completing {
		return ErrFlowCompleted
	}
	if o.child != nil {
		return o.child.handle(action)
	}

	switch action.Kind {
	case ActionSubmitIdentifier:
		return o.submitIdentifier(action.Value)
	case ActionBack, ActionCancel:
		o.complete(Output{Kind: OutputCancel})
		return nil
	default:
		return ErrActionNotSupported
	}
}

func (o *Orchestrator) submitIdentifier(raw string) error {
	if o.statusTask.Pending() {
		return ErrSubmissionInFlight
	}

	identifier, err := o.normalizeIdentifier(raw)
	if err != nil {
		verr := newValidationError("identifier", ErrInvalidIdentifier, err)
		o.host.metrics.Inc(MetricValidationRejected)
		o.container.ShowError(verr)
		return verr
	}

	o.identifier = identifier
	o.resolved = false
	o.container.SetLoading(ScreenIdentifier, true)

	started := o.host.now()
	identifierType := o.identifierType
	o.statusTask = task.Go(o.ctx, o.host.exec,
		func(ctx context.Context) (Status, error) {
			return o.host.fetcher.FetchStatus(ctx, identifier, identifierType)
		},
		func(status Status, err error) {
			o.host.metrics.Observe(MetricStatusLookupLatency, o.host.now().Sub(started))
			o.onStatus(status, err)
		})
	return nil
}

func (o *Orchestrator) normalizeIdentifier(raw string) (string, error) {
	if o.identifierType == IdentifierPhone {
		return validate.Phone(raw)
	}
	return validate.Email(raw)
}

func (o *Orchestrator) onStatus(status Status, err error) {
	o.container.SetLoading(ScreenIdentifier, false)

	if err != nil {
		o.host.metrics.Inc(MetricStatusLookupFailure)
		o.logger.Warn("identifier status lookup failed",
			zap.String("identifier", o.maskedIdentifier()), zap.Error(err))
		o.audit(auditStatusLookupFailed, false, err, nil)
		if !o.surface.ShowInlineError(ScreenIdentifier, err) {
			o.surface.ShowBlockingError(err)
		}
		return
	}

	variant := VariantFor(status)
	o.variant = variant
	o.resolved = true
	if variant == VariantSignup {
		o.host.metrics.Inc(MetricVariantSignup)
	} else {
		o.host.metrics.Inc(MetricVariantSignin)
	}
	o.audit(auditVariantResolved, true, nil, nil)

	disposition := o.host.willPresent(variant)
	switch disposition.Kind {
	case DispositionAbort:
		o.host.metrics.Inc(MetricDispositionAbort)
		o.logger.Info("delegate aborted flow", zap.Bool("dismiss", disposition.ShouldDismiss))
		if disposition.ShouldDismiss {
			o.complete(Output{Kind: OutputOnlyDismiss})
		}
		return
	case DispositionShowError:
		o.host.metrics.Inc(MetricDispositionError)
		derr := &DispositionError{Title: disposition.Title, Description: disposition.Description}
		if !o.surface.ShowInlineError(ScreenIdentifier, derr) {
			o.surface.ShowBlockingError(derr)
		}
		return
	}

	o.spawnCoordinator(o.authType, o.identifier, variant, o.scopes)
}

// spawnCoordinator replaces any live child with a new coordinator for authType.
func (o *Orchestrator) spawnCoordinator(authType AuthenticationType, identifier string, variant FlowVariant, scopes []string) {
	o.destroyChild()

	factory, ok := o.host.factories[authType]
	if !ok || factory == nil {
		o.host.fatal(&PreconditionError{Op: "spawnCoordinator", Reason: "no coordinator registered for " + authType.String()})
		return
	}

	coordinator := factory(o.coordinatorEnv(), CoordinatorInput{
		Identifier:     identifier,
		IdentifierType: o.identifierType,
		Variant:        variant,
		Scopes:         append([]string(nil), scopes...),
		Prefilled:      o.input.Method.Prefill() != "",
	})
	o.child = newChildFlowAdapter(coordinator, authType, o.onChildOutput)
	o.host.metrics.Inc(MetricCoordinatorSpawned)
	o.logger.Debug("coordinator spawned",
		zap.Stringer("auth_type", authType), zap.Stringer("variant", variant))
	o.child.start()
}

func (o *Orchestrator) coordinatorEnv() CoordinatorEnv {
	return CoordinatorEnv{
		Context:       o.ctx,
		Executor:      o.host.exec,
		Container:     o.container,
		Authenticator: o.host.auth,
		CodeValidator: o.host.validator,
		Logger:        o.logger.Named("coordinator"),
		Config:        o.host.cfg,
		Now:           o.host.now,
	}
}

func (o *Orchestrator) onChildOutput(child *childFlowAdapter, out AuthCoordinatorOutput) {
	if child != o.child || o.completing {
		return
	}
	o.logger.Debug("coordinator output", zap.Stringer("output", out.Kind), zap.Error(out.Err))

	if keepsChild(out) {
		o.container.ShowError(out.Err)
		return
	}
	o.destroyChild()

	switch out.Kind {
	case CoordinatorSuccess:
		var user User
		if out.User != nil {
			user = *out.User
		}
		o.complete(successOutput(user))
	case CoordinatorCancel:
		o.complete(Output{Kind: OutputCancel})
	case CoordinatorBack:
		o.container.PopToRoot()
	case CoordinatorChangeIdentifier:
		o.identifier = ""
		o.resolved = false
		o.resetNavigation("")
	case CoordinatorReset:
		o.resetNavigation(o.identifier)
		if out.Err != nil && !o.surface.ShowInlineError(ScreenIdentifier, out.Err) {
			o.surface.ShowBlockingError(out.Err)
		}
	}
}

func (o *Orchestrator) destroyChild() {
	if o.child == nil {
		return
	}
	child := o.child
	o.child = nil
	child.destroy()
}

func (o *Orchestrator) resetNavigation(identifier string) {
	o.container.Reset(o.identifierScreen(identifier))
}

// HandleRoute reconciles a deep-link route with the running flow. The child is
// offered the route first; a reset request tears it down before the route is
// processed here.
func (o *Orchestrator) HandleRoute(route deeplink.Route) {
	if o.completing {
		return
	}
	o.host.metrics.Inc(MetricRouteReceived)
	o.audit(auditRouteReceived, true, nil, map[string]string{"route": route.Kind.String()})
	o.logger.Debug("route received", zap.Stringer("route", route.Kind))

	if o.child != nil {
		switch o.child.attemptToPropagateRouteToChild(route) {
		case RouteHandled:
			o.host.metrics.Inc(MetricRouteHandledByChild)
			return
		case RouteResetRequest:
			o.host.metrics.Inc(MetricRouteResetByChild)
			o.destroyChild()
			o.resetNavigation(o.identifier)
		}
	}
	if o.completing {
		return
	}

	switch route.Kind {
	case deeplink.RouteLogin:
	case deeplink.RouteEnterPassword:
		o.enterPassword(route)
	case deeplink.RouteValidateAuthCode:
		o.validateCode(route.Code, route.PersistUser)
	}
}

func (o *Orchestrator) enterPassword(route deeplink.Route) {
	o.statusTask.Cancel()
	o.container.SetLoading(ScreenIdentifier, false)
	o.destroyChild()

	o.identifierType = IdentifierEmail
	o.identifier = strings.TrimSpace(route.Identifier)
	o.variant = VariantSignin
	o.resolved = true
	if len(route.Scopes) > 0 {
		o.scopes = append([]string(nil), route.Scopes...)
	}
	o.resetNavigation(o.identifier)
	o.spawnCoordinator(AuthPassword, o.identifier, VariantSignin, o.scopes)
}

// validateCode is authoritative by code: success completes the flow whatever
// step is visible, failure leaves navigation untouched.
func (o *Orchestrator) validateCode(code string, persistUser bool) {
	o.cancelCodeTask()
	kind := o.container.Top().Kind
	o.codeOn = kind
	o.container.SetLoading(kind, true)

	o.codeTask = task.Go(o.ctx, o.host.exec,
		func(ctx context.Context) (User, error) {
			return o.host.validator.Validate(ctx, code, persistUser)
		},
		func(user User, err error) {
			o.container.SetLoading(kind, false)
			if err != nil {
				o.host.metrics.Inc(MetricCodeValidationFailure)
				o.logger.Info("auth code validation failed", zap.Error(err))
				o.audit(auditCodeValidated, false, err, nil)
				o.container.ShowError(err)
				return
			}
			o.host.metrics.Inc(MetricCodeValidationSuccess)
			o.audit(auditCodeValidated, true, nil, nil)
			o.complete(successOutput(user))
		})
}

// cancelCodeTask drops an in-flight validation and clears the loading state
// it set on the step that was visible when it started.
func (o *Orchestrator) cancelCodeTask() {
	if !o.codeTask.Pending() {
		return
	}
	o.codeTask.Cancel()
	o.container.SetLoading(o.codeOn, false)
}

// complete is idempotent. The slot is released before the surface is
// dismissed and the completion runs on the executor after dismissal finished.
func (o *Orchestrator) complete(out Output) {
	if o.completing {
		return
	}
	o.completing = true

	o.statusTask.Cancel()
	o.cancelCodeTask()
	o.destroyChild()
	o.host.release(o)

	elapsed := o.host.now().Sub(o.startedAt)
	o.host.metrics.Inc(outputMetric(out.Kind))
	o.host.metrics.Observe(MetricFlowDuration, elapsed)
	o.audit(auditFlowFinished, out.Kind == OutputSuccess, nil, map[string]string{"output": out.Kind.String()})
	o.logger.Info("identity flow finished", zap.Stringer("output", out.Kind), zap.Duration("elapsed", elapsed))
	o.cancel()

	o.surface.Dismiss(o.host.cfg.Flow.Animated, func() {
		o.host.exec.Post(func() { o.finish(out) })
	})
}

func (o *Orchestrator) finish(out Output) {
	if o.delivered {
		return
	}
	o.delivered = true
	o.host.didFinish(out)
	o.completion(out)
}

func (o *Orchestrator) maskedIdentifier() string {
	return logging.MaskIdentifier(o.identifier)
}
