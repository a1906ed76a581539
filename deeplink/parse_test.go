package deeplink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClient = ClientConfig{Scheme: "acme-auth"}

func TestParseRejectsForeignScheme(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://acme.example/login",
		"other-auth://login",
		"acme-auth://unknown",
		"acme-auth://password",
		"acme-auth://validate?persist=true",
		"::not a url",
	} {
		_, ok := Parse(raw, testClient)
		assert.False(t, ok, raw)
	}
}

func TestParseRequiresScheme(t *testing.T) {
	_, ok := Parse("acme-auth://login", ClientConfig{})
	assert.False(t, ok)
}

func TestParseLogin(t *testing.T) {
	p, ok := Parse("ACME-AUTH://login", testClient)
	require.True(t, ok)
	require.NotNil(t, p.Route)
	assert.Equal(t, RouteLogin, p.Route.Kind)
	assert.Nil(t, p.Launch)
}

func TestParseEnterPassword(t *testing.T) {
	p, ok := Parse("acme-auth://password?email=x%40y.com&scopes=profile,email", testClient)
	require.True(t, ok)
	require.NotNil(t, p.Route)
	assert.Equal(t, RouteEnterPassword, p.Route.Kind)
	assert.Equal(t, "x@y.com", p.Route.Identifier)
	assert.Equal(t, []string{"profile", "email"}, p.Route.Scopes)

	require.NotNil(t, p.Launch)
	assert.Equal(t, LaunchAfterForgotPassword, p.Launch.Kind)
	assert.Equal(t, "x@y.com", p.Launch.Email)
}

func TestParseValidateContexts(t *testing.T) {
	p, ok := Parse("acme-auth://validate?code=123456&persist=false&context=signup", testClient)
	require.True(t, ok)
	assert.Equal(t, ValidateAuthCode("123456", false), *p.Route)
	require.NotNil(t, p.Launch)
	assert.Equal(t, LaunchCodeAfterSignup, p.Launch.Kind)
	assert.False(t, p.Launch.ShouldPersistUser)

	p, ok = Parse("acme-auth://validate?code=654321&context=login", testClient)
	require.True(t, ok)
	assert.True(t, p.Route.PersistUser, "persist defaults to true")
	require.NotNil(t, p.Launch)
	assert.Equal(t, LaunchCodeAfterUnvalidatedLogin, p.Launch.Kind)
	assert.Equal(t, "654321", p.Launch.Code)

	p, ok = Parse("acme-auth://validate?code=111111", testClient)
	require.True(t, ok)
	assert.Nil(t, p.Launch)
}

func TestParseHostPinned(t *testing.T) {
	cfg := ClientConfig{Scheme: "https", Host: "auth.acme.example"}

	p, ok := Parse("https://auth.acme.example/login", cfg)
	require.True(t, ok)
	assert.Equal(t, RouteLogin, p.Route.Kind)

	_, ok = Parse("https://evil.example/login", cfg)
	assert.False(t, ok)
	_, ok = Parse("https://auth.acme.example/a/login", cfg)
	assert.False(t, ok)
}

func TestParseTripleSlashForm(t *testing.T) {
	p, ok := Parse("acme-auth:///validate?code=42", testClient)
	require.True(t, ok)
	assert.Equal(t, "42", p.Route.Code)
}

func TestEnterPasswordCopiesScopes(t *testing.T) {
	scopes := []string{"profile"}
	r := EnterPassword("a@b.com", scopes)
	scopes[0] = "mutated"
	assert.Equal(t, []string{"profile"}, r.Scopes)
}
