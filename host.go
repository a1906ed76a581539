package authflow

import (
	"context"
	"time"

	"github.com/MrEthical07/authflow/deeplink"
	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/MrEthical07/authflow/internal/task"
	"go.uber.org/zap"
)

// Host owns the active-flow slot. At most one [Orchestrator] occupies it at a
// time; the slot is released before that flow's completion runs, so a
// completion may start the next flow.
//
// Host methods must be called from the executor passed to [Builder.WithExecutor].
type Host struct {
	cfg       Config
	exec      Executor
	logger    *zap.Logger
	fetcher   StatusFetcher
	validator CodeValidator
	auth      Authenticator
	identity  IdentityManager
	delegate  Delegate
	terms     TermsProvider
	metrics   *Metrics
	audit     *internalaudit.Dispatcher
	factories map[AuthenticationType]CoordinatorFactory
	fatal     func(error)
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	active   *Orchestrator
	headless []pendingTask
	closed   bool
}

// Start begins a flow for input. Starting a fresh flow while another is
// active is a precondition violation. A route input arriving while a flow is
// active is reconciled by that flow and the caller receives NotStarted.
func (h *Host) Start(input Input, completion CompletionFunc) {
	if completion == nil {
		completion = func(Output) {}
	}
	if h.closed {
		h.fatal(&PreconditionError{Op: "Start", Reason: "host is closed", Err: ErrHostClosed})
		return
	}

	if h.active != nil {
		if input.Kind == InputByRoute {
			h.active.HandleRoute(input.Route)
			h.metrics.Inc(MetricFlowNotStarted)
			completion(Output{Kind: OutputNotStarted})
			return
		}
		h.fatal(&PreconditionError{Op: "Start", Reason: "fresh flow started while another flow is active", Err: ErrFlowActive})
		return
	}

	if input.Surface == nil {
		h.fatal(&PreconditionError{Op: "Start", Reason: "presentation surface is nil"})
		return
	}
	method := h.methodFor(input)
	if !h.methodEnabled(method) {
		h.fatal(&PreconditionError{Op: "Start", Reason: method.IdentifierType().String() + " identifiers are disabled by configuration"})
		return
	}

	o := newOrchestrator(h, input, method, completion)
	h.active = o
	h.metrics.Inc(MetricFlowStarted)
	o.audit(auditFlowStarted, true, nil, map[string]string{
		"auth_type": method.AuthenticationType().String(),
		"input":     inputName(input.Kind),
	})
	o.logger.Info("identity flow started",
		zap.Stringer("auth_type", method.AuthenticationType()),
		zap.Stringer("identifier_type", method.IdentifierType()))

	o.present()
	if input.Kind == InputByRoute {
		o.HandleRoute(input.Route)
	}
}

// Present starts a fresh flow for method.
func (h *Host) Present(method LoginMethod, surface PresentationSurface, teaser *string, scopes []string, completion CompletionFunc) {
	h.Start(ByLoginMethod(method, surface, teaser, scopes), completion)
}

// Resume starts or reconciles a flow from a parsed route.
func (h *Host) Resume(route deeplink.Route, surface PresentationSurface, completion CompletionFunc) {
	h.Start(ByRoute(route, surface), completion)
}

// Active returns the flow occupying the slot, or nil.
func (h *Host) Active() *Orchestrator {
	return h.active
}

// Dispatch forwards a user action to the active flow.
func (h *Host) Dispatch(action Action) error {
	if h.active == nil {
		return ErrNoActiveFlow
	}
	return h.active.Dispatch(action)
}

// OpenURL parses rawURL and hands its route to the active flow. With no active
// flow and a non-nil surface a new flow is started from the route; completion is
// only used in that case. The parsed payload is always returned so the caller
// can handle its launch interpretation.
func (h *Host) OpenURL(rawURL string, surface PresentationSurface, completion CompletionFunc) (deeplink.Payload, error) {
	payload, ok := h.parseURL(rawURL)
	if !ok {
		h.logger.Debug("unrecognized redirect url")
		return deeplink.Payload{}, ErrUnrecognizedURL
	}
	if payload.Route == nil {
		return payload, nil
	}
	switch {
	case h.active != nil:
		h.active.HandleRoute(*payload.Route)
	case surface != nil:
		h.Start(ByRoute(*payload.Route, surface), completion)
	}
	return payload, nil
}

// Launch handles a launch-time payload. Codes are validated without UI and
// complete with Success or NotStarted. A password-reset return presents a
// password flow pre-filled with the email. With an active flow the payload is
// reconciled as a route and the caller receives NotStarted.
func (h *Host) Launch(payload deeplink.LaunchPayload, surface PresentationSurface, completion CompletionFunc) error {
	if completion == nil {
		completion = func(Output) {}
	}
	if h.closed {
		return ErrHostClosed
	}

	switch payload.Kind {
	case deeplink.LaunchAfterForgotPassword:
		if h.active != nil {
			h.active.HandleRoute(deeplink.EnterPassword(payload.Email, nil))
			h.metrics.Inc(MetricFlowNotStarted)
			completion(Output{Kind: OutputNotStarted})
			return nil
		}
		h.Start(ByLoginMethod(PasswordPrefilledEmail(payload.Email), surface, nil, h.cfg.Flow.DefaultScopes), completion)
		return nil

	case deeplink.LaunchCodeAfterSignup, deeplink.LaunchCodeAfterUnvalidatedLogin:
		persist := payload.ShouldPersistUser || payload.Kind == deeplink.LaunchCodeAfterUnvalidatedLogin
		if h.active != nil {
			h.active.HandleRoute(deeplink.ValidateAuthCode(payload.Code, persist))
			h.metrics.Inc(MetricFlowNotStarted)
			completion(Output{Kind: OutputNotStarted})
			return nil
		}
		h.validateHeadless(payload, persist, completion)
		return nil
	}
	return ErrUnrecognizedURL
}

func (h *Host) validateHeadless(payload deeplink.LaunchPayload, persist bool, completion CompletionFunc) {
	var t *task.Task[User]
	t = task.Go(h.ctx, h.exec,
		func(ctx context.Context) (User, error) {
			return h.validator.Validate(ctx, payload.Code, persist)
		},
		func(user User, err error) {
			h.forgetHeadless(t)
			event := AuditEvent{EventType: auditLaunchHandled, Metadata: map[string]string{"launch": payload.Kind.String()}}
			if err != nil {
				h.metrics.Inc(MetricCodeValidationFailure)
				h.metrics.Inc(MetricFlowNotStarted)
				h.logger.Warn("launch code validation failed", zap.Stringer("launch", payload.Kind), zap.Error(err))
				event.Error = err.Error()
				h.emitAudit(h.ctx, event)
				completion(Output{Kind: OutputNotStarted})
				return
			}
			h.metrics.Inc(MetricCodeValidationSuccess)
			event.Success = true
			event.UserID = user.ID
			h.emitAudit(h.ctx, event)
			out := successOutput(user)
			h.didFinish(out)
			completion(out)
		})
	h.headless = append(h.headless, t)
}

func (h *Host) forgetHeadless(t pendingTask) {
	for i, p := range h.headless {
		if p == t {
			h.headless = append(h.headless[:i], h.headless[i+1:]...)
			return
		}
	}
}

// CurrentUser returns the signed-in user from the identity manager, or nil
// when no manager is configured.
func (h *Host) CurrentUser(ctx context.Context) (*User, error) {
	if h.identity == nil {
		return nil, nil
	}
	return h.identity.CurrentUser(ctx)
}

// Metrics returns the host's metrics registry.
func (h *Host) Metrics() *Metrics {
	return h.metrics
}

// MetricsSnapshot returns a point-in-time copy of the host's metrics.
func (h *Host) MetricsSnapshot() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// AuditDropped reports audit events dropped under backpressure.
func (h *Host) AuditDropped() uint64 {
	return h.audit.Dropped()
}

// Config returns a copy of the host configuration.
func (h *Host) Config() Config {
	return cloneConfig(h.cfg)
}

// Close cancels outstanding collaborator calls and flushes the audit
// dispatcher. A flow still in the slot receives no Output.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	for _, t := range h.headless {
		t.Cancel()
	}
	h.headless = nil
	h.cancel()
	h.audit.Close()
}

func (h *Host) release(o *Orchestrator) {
	if h.active == o {
		h.active = nil
	}
}

func (h *Host) parseURL(rawURL string) (deeplink.Payload, bool) {
	if h.identity != nil {
		return h.identity.ParseRedirectURL(rawURL)
	}
	return deeplink.Parse(rawURL, h.cfg.Deeplink.ClientConfig())
}

func (h *Host) methodFor(input Input) LoginMethod {
	if input.Kind == InputByLoginMethod {
		return input.Method
	}
	if h.cfg.Flow.EmailEnabled {
		return EmailMethod()
	}
	return PhoneMethod()
}

func (h *Host) methodEnabled(method LoginMethod) bool {
	if method.IdentifierType() == IdentifierPhone {
		return h.cfg.Flow.PhoneEnabled
	}
	return h.cfg.Flow.EmailEnabled
}

func (h *Host) willPresent(variant FlowVariant) Disposition {
	if h.delegate == nil {
		return Continue()
	}
	return h.delegate.WillPresent(variant)
}

func (h *Host) didFinish(out Output) {
	switch out.Kind {
	case OutputSuccess:
		if h.delegate != nil {
			h.delegate.DidFinish(FinishResult{User: out.User})
		}
		if out.User != nil {
			h.refreshTerms(*out.User)
		}
	case OutputCancel:
		if h.delegate != nil {
			h.delegate.DidFinish(FinishResult{Canceled: true})
		}
	}
}

// refreshTerms runs off the executor. Failures are logged and retried by the
// next successful flow.
func (h *Host) refreshTerms(user User) {
	if h.terms == nil || !h.cfg.Flow.RefreshTerms {
		return
	}
	ctx := h.ctx
	go func() {
		if err := h.terms.FetchUpdatedTerms(ctx, user); err != nil {
			h.metrics.Inc(MetricTermsRefreshFailure)
			h.logger.Warn("terms refresh failed",
				zap.String("user_id", user.ID),
				zap.String("identifier", logging.MaskIdentifier(user.Identifier)),
				zap.Error(err))
		}
	}()
}

func inputName(kind InputKind) string {
	if kind == InputByRoute {
		return "route"
	}
	return "login_method"
}
