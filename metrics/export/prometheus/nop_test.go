package prometheus

import (
	"context"

	"github.com/MrEthical07/authflow"
)

type nopBackend struct{}

func (nopBackend) FetchStatus(context.Context, string, authflow.IdentifierType) (authflow.Status, error) {
	return authflow.Status{Available: true}, nil
}

func (nopBackend) Validate(context.Context, string, bool) (authflow.User, error) {
	return authflow.User{}, authflow.ErrCodeExpired
}

func (nopBackend) SignIn(context.Context, string, string, []string) (authflow.User, error) {
	return authflow.User{}, authflow.ErrInvalidCredentials
}

func (nopBackend) SignUp(context.Context, authflow.SignUpRequest) (authflow.User, error) {
	return authflow.User{}, nil
}

func (nopBackend) SendCode(context.Context, string, authflow.IdentifierType, authflow.FlowVariant) error {
	return nil
}

func (nopBackend) CompleteProfile(_ context.Context, u authflow.User, _ authflow.Profile) (authflow.User, error) {
	return u, nil
}

func (nopBackend) RequestPasswordReset(context.Context, string) error { return nil }
