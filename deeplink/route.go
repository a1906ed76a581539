package deeplink

// RouteKind discriminates the [Route] tagged union.
type RouteKind uint8

const (
	// RouteLogin asks for the identifier step to be shown.
	RouteLogin RouteKind = iota + 1
	// RouteEnterPassword resumes at the password step for a known identifier.
	RouteEnterPassword
	// RouteValidateAuthCode carries a one-time code to validate.
	RouteValidateAuthCode
)

func (k RouteKind) String() string {
	switch k {
	case RouteLogin:
		return "login"
	case RouteEnterPassword:
		return "enter_password"
	case RouteValidateAuthCode:
		return "validate_auth_code"
	default:
		return "unknown"
	}
}

// Route is a structured intent parsed from a deep link.
//
// Only the fields of the active Kind are meaningful.
type Route struct {
	Kind RouteKind

	// EnterPassword
	Identifier string
	Scopes     []string

	// ValidateAuthCode
	Code        string
	PersistUser bool
}

// Login builds a [RouteLogin] route.
func Login() Route {
	return Route{Kind: RouteLogin}
}

// EnterPassword builds a [RouteEnterPassword] route.
func EnterPassword(identifier string, scopes []string) Route {
	return Route{Kind: RouteEnterPassword, Identifier: identifier, Scopes: cloneScopes(scopes)}
}

// ValidateAuthCode builds a [RouteValidateAuthCode] route.
func ValidateAuthCode(code string, persistUser bool) Route {
	return Route{Kind: RouteValidateAuthCode, Code: code, PersistUser: persistUser}
}

// LaunchKind discriminates the [LaunchPayload] tagged union.
type LaunchKind uint8

const (
	// LaunchAfterForgotPassword is emitted when a user returns from a password reset.
	LaunchAfterForgotPassword LaunchKind = iota + 1
	// LaunchCodeAfterSignup carries the verification code sent after sign-up.
	LaunchCodeAfterSignup
	// LaunchCodeAfterUnvalidatedLogin carries the code sent after a login with an
	// unvalidated identifier.
	LaunchCodeAfterUnvalidatedLogin
)

func (k LaunchKind) String() string {
	switch k {
	case LaunchAfterForgotPassword:
		return "after_forgot_password"
	case LaunchCodeAfterSignup:
		return "code_after_signup"
	case LaunchCodeAfterUnvalidatedLogin:
		return "code_after_unvalidated_login"
	default:
		return "unknown"
	}
}

// LaunchPayload is the headless, launch-time interpretation of a deep link.
type LaunchPayload struct {
	Kind LaunchKind

	Email             string
	Code              string
	ShouldPersistUser bool
}

// Payload is the result of a successful [Parse]. At least one of Route and Launch
// is non-nil.
type Payload struct {
	Route  *Route
	Launch *LaunchPayload
}

func cloneScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out
}
