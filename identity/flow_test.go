package identity

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSurface struct {
	screens []authflow.Screen
	errs    []error
}

func (s *recordingSurface) Present(c *authflow.Container, _ bool)    { s.screens = c.Screens() }
func (s *recordingSurface) Dismiss(_ bool, done func())              { done() }
func (s *recordingSurface) Render(screens []authflow.Screen, _ bool) { s.screens = screens }
func (s *recordingSurface) SetLoading(authflow.ScreenKind, bool)     {}
func (s *recordingSurface) ShowBlockingError(err error)              { s.errs = append(s.errs, err) }
func (s *recordingSurface) ShowInlineError(_ authflow.ScreenKind, err error) bool {
	s.errs = append(s.errs, err)
	return true
}

func (s *recordingSurface) top() authflow.ScreenKind {
	if len(s.screens) == 0 {
		return 0
	}
	return s.screens[len(s.screens)-1].Kind
}

func TestHostRunsAgainstRedisBackend(t *testing.T) {
	f := newFixture(t)
	exec := authflow.NewManualExecutor()
	cfg := authflow.DefaultConfig()
	cfg.Deeplink.Scheme = "acme-auth"

	host, err := authflow.New().
		WithConfig(cfg).
		WithExecutor(exec).
		WithStatusFetcher(f.mgr).
		WithCodeValidator(f.mgr).
		WithAuthenticator(f.mgr).
		WithIdentityManager(f.mgr).
		WithTermsProvider(f.mgr).
		WithClock(func() time.Time { return f.now }).
		Build()
	require.NoError(t, err)
	t.Cleanup(host.Close)

	settle := func(cond func() bool) {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, exec.DrainUntil(ctx, cond))
	}

	surface := &recordingSurface{}
	var outputs []authflow.Output
	host.Start(authflow.ByLoginMethod(authflow.EmailMethod(), surface, nil, []string{"openid"}), func(o authflow.Output) {
		outputs = append(outputs, o)
	})
	exec.Drain()

	require.NoError(t, host.Dispatch(authflow.SubmitIdentifier("Ada@Example.com")))
	settle(func() bool {
		_, sent := f.outbox.Last("Ada@example.com")
		return surface.top() == authflow.ScreenCode && sent
	})

	require.NoError(t, host.Dispatch(authflow.SubmitCode(f.lastCode(t, "Ada@example.com"))))
	settle(func() bool { return surface.top() == authflow.ScreenTerms })
	require.NoError(t, host.Dispatch(authflow.Action{Kind: authflow.ActionAcceptTerms}))
	exec.Drain()
	require.NoError(t, host.Dispatch(authflow.SubmitProfile(authflow.Profile{DisplayName: "Ada", BirthDate: "1980-01-01"})))
	settle(func() bool { return len(outputs) == 1 })

	require.Equal(t, authflow.OutputSuccess, outputs[0].Kind)
	user := outputs[0].User
	assert.True(t, user.ProfileComplete)
	assert.Nil(t, host.Active())

	cur, err := host.CurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, user.ID, cur.ID)

	assert.Eventually(t, func() bool {
		acct, err := f.mgr.accounts.GetByID(context.Background(), user.ID)
		return err == nil && acct.TermsVersion == 1
	}, 2*time.Second, 10*time.Millisecond)

	st, err := f.mgr.FetchStatus(context.Background(), "Ada@example.com", authflow.IdentifierEmail)
	require.NoError(t, err)
	assert.False(t, st.Available)
}
