package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrFlowActive is reported when a fresh flow is started while another one occupies the slot.
	ErrFlowActive = errors.New("identity flow already active")
	// ErrNoActiveFlow is returned by host operations that need a running flow.
	ErrNoActiveFlow = errors.New("no active identity flow")
	// ErrFlowCompleted is returned by operations on an orchestrator that already completed.
	ErrFlowCompleted = errors.New("identity flow completed")
	// ErrSubmissionInFlight is returned while a previous submission on the same step is pending.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrActionNotSupported is returned when an action does not apply to the current step.
	ErrActionNotSupported = errors.New("action not supported on current step")
	// ErrInvalidIdentifier is a validation failure of the identifier step.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidCode is a validation failure of a one-time code.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrInvalidBirthDate is a validation failure of the profile step.
	ErrInvalidBirthDate = errors.New("invalid birth date")
	// ErrPasswordTooShort is a validation failure of the create-password step.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrInvalidCredentials is returned by authenticators when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by authenticators when a sign-up collides with an account.
	ErrAccountExists = errors.New("account already exists")
	// ErrCodeExpired is returned by code validators for unknown or expired codes.
	ErrCodeExpired = errors.New("verification code expired or unknown")
	// ErrResendTooSoon is returned when a code is re-requested inside the resend window.
	ErrResendTooSoon = errors.New("verification code requested too soon")
	// ErrUnrecognizedURL is returned when a URL does not parse into a payload.
	ErrUnrecognizedURL = errors.New("unrecognized redirect url")
	// ErrHostClosed is returned by operations on a closed host.
	ErrHostClosed = errors.New("host closed")
)

// PreconditionError is a caller-side programming error. It is handed to the
// host's fatal handler and never returned as a recoverable error.
type PreconditionError struct {
	Op     string
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authflow: precondition violated in %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("authflow: precondition violated in %s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// DispositionError carries the message a delegate asked to show when it
// rejected an identifier submission.
type DispositionError struct {
	Title       string
	Description string
}

func (e *DispositionError) Error() string {
	if e.Description == "" {
		return e.Title
	}
	return e.Title + ": " + e.Description
}

// ValidationError is a local input validation failure. It wraps one of the
// validation sentinels and the underlying cause.
type ValidationError struct {
	Field string
	Err   error
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Field, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func newValidationError(field string, sentinel, cause error) *ValidationError {
	return &ValidationError{Field: field, Err: sentinel, Cause: cause}
}
