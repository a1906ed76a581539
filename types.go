package authflow

import (
	"context"

	"github.com/MrEthical07/authflow/deeplink"
)

// AuthenticationType selects the coordinator family member that verifies the
// identifier.
type AuthenticationType uint8

const (
	// AuthPasswordless verifies the identifier with a one-time code.
	AuthPasswordless AuthenticationType = iota
	// AuthPassword verifies the identifier with a password.
	AuthPassword
)

func (t AuthenticationType) String() string {
	if t == AuthPassword {
		return "password"
	}
	return "passwordless"
}

// IdentifierType is the kind of identifier collected by the identifier step.
type IdentifierType uint8

const (
	// IdentifierEmail is an email address.
	IdentifierEmail IdentifierType = iota
	// IdentifierPhone is an E.164 phone number.
	IdentifierPhone
)

func (t IdentifierType) String() string {
	if t == IdentifierPhone {
		return "phone"
	}
	return "email"
}

// LoginMethodKind discriminates the [LoginMethod] tagged union.
type LoginMethodKind uint8

const (
	MethodEmail LoginMethodKind = iota
	MethodEmailPrefilled
	MethodPhone
	MethodPhonePrefilled
	MethodPassword
	MethodPasswordPrefilledEmail
)

// LoginMethod identifies how the user authenticates and, for prefilled kinds,
// the identifier shown on the first step.
type LoginMethod struct {
	Kind  LoginMethodKind
	Value string
}

func EmailMethod() LoginMethod            { return LoginMethod{Kind: MethodEmail} }
func EmailPrefilled(v string) LoginMethod { return LoginMethod{Kind: MethodEmailPrefilled, Value: v} }
func PhoneMethod() LoginMethod            { return LoginMethod{Kind: MethodPhone} }
func PhonePrefilled(v string) LoginMethod { return LoginMethod{Kind: MethodPhonePrefilled, Value: v} }
func PasswordMethod() LoginMethod         { return LoginMethod{Kind: MethodPassword} }
func PasswordPrefilledEmail(v string) LoginMethod {
	return LoginMethod{Kind: MethodPasswordPrefilledEmail, Value: v}
}

// AuthenticationType derives the coordinator family member for m.
func (m LoginMethod) AuthenticationType() AuthenticationType {
	switch m.Kind {
	case MethodPassword, MethodPasswordPrefilledEmail:
		return AuthPassword
	default:
		return AuthPasswordless
	}
}

// IdentifierType derives the identifier kind for m.
func (m LoginMethod) IdentifierType() IdentifierType {
	switch m.Kind {
	case MethodPhone, MethodPhonePrefilled:
		return IdentifierPhone
	default:
		return IdentifierEmail
	}
}

// Prefill returns the identifier carried by prefilled kinds.
func (m LoginMethod) Prefill() string {
	switch m.Kind {
	case MethodEmailPrefilled, MethodPhonePrefilled, MethodPasswordPrefilledEmail:
		return m.Value
	default:
		return ""
	}
}

// FlowVariant says whether the identifier belongs to an existing account.
// It is derived from the status lookup and never chosen by the user.
type FlowVariant uint8

const (
	VariantSignin FlowVariant = iota
	VariantSignup
)

func (v FlowVariant) String() string {
	if v == VariantSignup {
		return "signup"
	}
	return "signin"
}

// VariantFor maps a status lookup to its flow variant.
func VariantFor(status Status) FlowVariant {
	if status.Available {
		return VariantSignup
	}
	return VariantSignin
}

// User is the authenticated principal delivered on success.
type User struct {
	ID              string
	Identifier      string
	IdentifierType  IdentifierType
	DisplayName     string
	Scopes          []string
	AccessToken     string
	Persisted       bool
	ProfileComplete bool
}

// Status is the result of an identifier status lookup. Available means no
// account uses the identifier yet.
type Status struct {
	Available bool
}

// Profile is collected on the profile step of a sign-up.
type Profile struct {
	DisplayName string
	BirthDate   string
}

// SignUpRequest is passed to [Authenticator.SignUp] by the password coordinator.
type SignUpRequest struct {
	Identifier     string
	IdentifierType IdentifierType
	Password       string
	Profile        Profile
	Scopes         []string
}

// InputKind discriminates the [Input] tagged union.
type InputKind uint8

const (
	InputByLoginMethod InputKind = iota
	InputByRoute
)

// Input starts a flow either fresh from a login method or from a parsed route.
type Input struct {
	Kind    InputKind
	Surface PresentationSurface

	// ByLoginMethod
	Method LoginMethod
	Teaser *string
	Scopes []string

	// ByRoute
	Route deeplink.Route
}

// ByLoginMethod builds a fresh-start input.
func ByLoginMethod(method LoginMethod, surface PresentationSurface, teaser *string, scopes []string) Input {
	return Input{
		Kind:    InputByLoginMethod,
		Surface: surface,
		Method:  method,
		Teaser:  teaser,
		Scopes:  append([]string(nil), scopes...),
	}
}

// ByRoute builds a route-resume input.
func ByRoute(route deeplink.Route, surface PresentationSurface) Input {
	return Input{Kind: InputByRoute, Surface: surface, Route: route}
}

// OutputKind discriminates the [Output] tagged union.
type OutputKind uint8

const (
	OutputSuccess OutputKind = iota + 1
	OutputCancel
	OutputNotStarted
	OutputOnlyDismiss
)

func (k OutputKind) String() string {
	switch k {
	case OutputSuccess:
		return "success"
	case OutputCancel:
		return "cancel"
	case OutputNotStarted:
		return "not_started"
	case OutputOnlyDismiss:
		return "only_dismiss"
	default:
		return "unknown"
	}
}

// Output is the single terminal result of a started input.
type Output struct {
	Kind OutputKind
	User *User
}

func successOutput(u User) Output { return Output{Kind: OutputSuccess, User: &u} }

// CoordinatorOutputKind discriminates [AuthCoordinatorOutput].
type CoordinatorOutputKind uint8

const (
	CoordinatorSuccess CoordinatorOutputKind = iota + 1
	CoordinatorCancel
	CoordinatorBack
	CoordinatorChangeIdentifier
	CoordinatorReset
	CoordinatorError
)

func (k CoordinatorOutputKind) String() string {
	switch k {
	case CoordinatorSuccess:
		return "success"
	case CoordinatorCancel:
		return "cancel"
	case CoordinatorBack:
		return "back"
	case CoordinatorChangeIdentifier:
		return "change_identifier"
	case CoordinatorReset:
		return "reset"
	case CoordinatorError:
		return "error"
	default:
		return "unknown"
	}
}

// AuthCoordinatorOutput is emitted by a coordinator. User is set for
// CoordinatorSuccess; Err may be set for CoordinatorReset and CoordinatorError.
type AuthCoordinatorOutput struct {
	Kind CoordinatorOutputKind
	User *User
	Err  error
}

// RouteHandleResult is a child's answer when offered a route.
type RouteHandleResult uint8

const (
	RouteCannotHandle RouteHandleResult = iota
	RouteHandled
	RouteResetRequest
)

func (r RouteHandleResult) String() string {
	switch r {
	case RouteHandled:
		return "handled"
	case RouteResetRequest:
		return "reset_request"
	default:
		return "cannot_handle"
	}
}

// DispositionKind discriminates [Disposition].
type DispositionKind uint8

const (
	DispositionContinue DispositionKind = iota
	DispositionAbort
	DispositionShowError
)

// Disposition is the delegate's decision after the flow variant is resolved.
type Disposition struct {
	Kind          DispositionKind
	ShouldDismiss bool
	Title         string
	Description   string
}

func Continue() Disposition { return Disposition{Kind: DispositionContinue} }

func Abort(shouldDismiss bool) Disposition {
	return Disposition{Kind: DispositionAbort, ShouldDismiss: shouldDismiss}
}

func ShowError(title, description string) Disposition {
	return Disposition{Kind: DispositionShowError, Title: title, Description: description}
}

// FinishResult is reported to [Delegate.DidFinish]. User is nil when the
// flow was canceled.
type FinishResult struct {
	Canceled bool
	User     *User
}

// ScreenKind names one step of a flow.
type ScreenKind uint8

const (
	ScreenIdentifier ScreenKind = iota
	ScreenPassword
	ScreenCreatePassword
	ScreenCode
	ScreenTerms
	ScreenProfile
	ScreenResetLinkSent
)

func (k ScreenKind) String() string {
	switch k {
	case ScreenIdentifier:
		return "identifier"
	case ScreenPassword:
		return "password"
	case ScreenCreatePassword:
		return "create_password"
	case ScreenCode:
		return "code"
	case ScreenTerms:
		return "terms"
	case ScreenProfile:
		return "profile"
	case ScreenResetLinkSent:
		return "reset_link_sent"
	default:
		return "unknown"
	}
}

// Screen is one entry of the navigation stack handed to the surface.
type Screen struct {
	Kind           ScreenKind
	Identifier     string
	IdentifierType IdentifierType
	Variant        FlowVariant
	Teaser         string
	Scopes         []string
}

// ActionKind discriminates [Action].
type ActionKind uint8

const (
	ActionSubmitIdentifier ActionKind = iota + 1
	ActionSubmitPassword
	ActionForgotPassword
	ActionSubmitCode
	ActionResendCode
	ActionAcceptTerms
	ActionDeclineTerms
	ActionSubmitProfile
	ActionBack
	ActionCancel
	ActionChangeIdentifier
)

func (k ActionKind) String() string {
	switch k {
	case ActionSubmitIdentifier:
		return "submit_identifier"
	case ActionSubmitPassword:
		return "submit_password"
	case ActionForgotPassword:
		return "forgot_password"
	case ActionSubmitCode:
		return "submit_code"
	case ActionResendCode:
		return "resend_code"
	case ActionAcceptTerms:
		return "accept_terms"
	case ActionDeclineTerms:
		return "decline_terms"
	case ActionSubmitProfile:
		return "submit_profile"
	case ActionBack:
		return "back"
	case ActionCancel:
		return "cancel"
	case ActionChangeIdentifier:
		return "change_identifier"
	default:
		return "unknown"
	}
}

// Action is a user intent reported by the surface. Value carries the
// identifier, password or code; Profile is used by ActionSubmitProfile.
type Action struct {
	Kind    ActionKind
	Value   string
	Profile Profile
}

func SubmitIdentifier(v string) Action { return Action{Kind: ActionSubmitIdentifier, Value: v} }
func SubmitPassword(v string) Action   { return Action{Kind: ActionSubmitPassword, Value: v} }
func SubmitCode(v string) Action       { return Action{Kind: ActionSubmitCode, Value: v} }
func SubmitProfile(p Profile) Action   { return Action{Kind: ActionSubmitProfile, Profile: p} }

// PresentationSurface renders flow screens. All calls happen on the executor.
type PresentationSurface interface {
	Present(container *Container, animated bool)
	// Dismiss must call done once teardown has fully finished.
	Dismiss(animated bool, done func())
	Render(screens []Screen, animated bool)
	SetLoading(kind ScreenKind, loading bool)
	// ShowInlineError reports whether the step could display err inline.
	ShowInlineError(kind ScreenKind, err error) bool
	ShowBlockingError(err error)
}

// StatusFetcher looks up whether an identifier is registered.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, identifier string, identifierType IdentifierType) (Status, error)
}

// CodeValidator exchanges a one-time code for a user.
type CodeValidator interface {
	Validate(ctx context.Context, code string, persistUser bool) (User, error)
}

// Authenticator performs the method-specific backend calls made by coordinators.
type Authenticator interface {
	SignIn(ctx context.Context, identifier, password string, scopes []string) (User, error)
	SignUp(ctx context.Context, req SignUpRequest) (User, error)
	SendCode(ctx context.Context, identifier string, identifierType IdentifierType, variant FlowVariant) error
	CompleteProfile(ctx context.Context, user User, profile Profile) (User, error)
	RequestPasswordReset(ctx context.Context, identifier string) error
}

// IdentityManager owns session state and the redirect URL encoding.
type IdentityManager interface {
	CurrentUser(ctx context.Context) (*User, error)
	ParseRedirectURL(rawURL string) (deeplink.Payload, bool)
}

// Delegate is implemented by the host application.
type Delegate interface {
	WillPresent(variant FlowVariant) Disposition
	DidFinish(result FinishResult)
}

// TermsProvider refreshes the terms a signed-in user has accepted.
type TermsProvider interface {
	FetchUpdatedTerms(ctx context.Context, user User) error
}

// CompletionFunc receives the terminal [Output] of a started input.
type CompletionFunc func(Output)
