package deeplink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltURLsParseBack(t *testing.T) {
	for _, cfg := range []ClientConfig{testClient, {Scheme: "https", Host: "auth.acme.example"}} {
		p, ok := Parse(PasswordURL(cfg, "a+b@c.com", []string{"openid", "email"}), cfg)
		require.True(t, ok, cfg)
		assert.Equal(t, EnterPassword("a+b@c.com", []string{"openid", "email"}), *p.Route)
		assert.Equal(t, LaunchAfterForgotPassword, p.Launch.Kind)

		p, ok = Parse(ValidateURL(cfg, "123456", CodeContextSignup, false), cfg)
		require.True(t, ok, cfg)
		assert.Equal(t, ValidateAuthCode("123456", false), *p.Route)
		assert.Equal(t, LaunchCodeAfterSignup, p.Launch.Kind)
		assert.False(t, p.Launch.ShouldPersistUser)

		p, ok = Parse(ValidateURL(cfg, "123456", CodeContextNone, true), cfg)
		require.True(t, ok, cfg)
		assert.True(t, p.Route.PersistUser)
		assert.Nil(t, p.Launch)

		p, ok = Parse(LoginURL(cfg), cfg)
		require.True(t, ok, cfg)
		assert.Equal(t, RouteLogin, p.Route.Kind)
	}
}

func TestValidateURLShape(t *testing.T) {
	assert.Equal(t, "acme-auth://validate?code=42&context=login", ValidateURL(testClient, "42", CodeContextLogin, true))
}
