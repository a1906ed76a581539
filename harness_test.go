package authflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/internal/mainloop"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSurface struct {
	presented    int
	dismissed    int
	screens      []Screen
	loading      map[ScreenKind]bool
	inline       []error
	blocking     []error
	noInline     bool
	holdDismiss  bool
	pendingDone  func()
	activeOnDone []bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{loading: map[ScreenKind]bool{}}
}

func (s *fakeSurface) Present(c *Container, _ bool) {
	s.presented++
	s.screens = c.Screens()
}

func (s *fakeSurface) Dismiss(_ bool, done func()) {
	s.dismissed++
	if s.holdDismiss {
		s.pendingDone = done
		return
	}
	done()
}

func (s *fakeSurface) Render(screens []Screen, _ bool) { s.screens = screens }

func (s *fakeSurface) SetLoading(kind ScreenKind, loading bool) { s.loading[kind] = loading }

func (s *fakeSurface) ShowInlineError(_ ScreenKind, err error) bool {
	if s.noInline {
		return false
	}
	s.inline = append(s.inline, err)
	return true
}

func (s *fakeSurface) ShowBlockingError(err error) { s.blocking = append(s.blocking, err) }

func (s *fakeSurface) top() Screen {
	if len(s.screens) == 0 {
		return Screen{}
	}
	return s.screens[len(s.screens)-1]
}

type fakeBackend struct {
	mu sync.Mutex

	registered map[string]string
	codes      map[string]User
	statusErr  error
	sendErr    error
	statusGate chan struct{}
	signInGate chan struct{}
	codeGate   chan struct{}

	statusCalls   int
	validateCalls int
	sent          []string
	resets        []string
	signUps       []SignUpRequest
	profiles      []Profile
	lastPersist   bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		registered: map[string]string{},
		codes:      map[string]User{},
	}
}

func (b *fakeBackend) FetchStatus(ctx context.Context, identifier string, _ IdentifierType) (Status, error) {
	b.mu.Lock()
	b.statusCalls++
	gate := b.statusGate
	err := b.statusErr
	_, taken := b.registered[identifier]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Available: !taken}, nil
}

func (b *fakeBackend) Validate(ctx context.Context, code string, persistUser bool) (User, error) {
	b.mu.Lock()
	b.validateCalls++
	gate := b.codeGate
	b.mu.Unlock()
	if err := waitGate(ctx, gate); err != nil {
		return User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPersist = persistUser
	user, ok := b.codes[code]
	if !ok {
		return User{}, ErrCodeExpired
	}
	delete(b.codes, code)
	user.Persisted = persistUser
	return user, nil
}

func (b *fakeBackend) SignIn(ctx context.Context, identifier, password string, scopes []string) (User, error) {
	b.mu.Lock()
	gate := b.signInGate
	b.mu.Unlock()
	if err := waitGate(ctx, gate); err != nil {
		return User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if stored, ok := b.registered[identifier]; !ok || stored != password {
		return User{}, ErrInvalidCredentials
	}
	return User{ID: "u-" + identifier, Identifier: identifier, Scopes: scopes, ProfileComplete: true}, nil
}

func (b *fakeBackend) SignUp(_ context.Context, req SignUpRequest) (User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.registered[req.Identifier]; ok {
		return User{}, ErrAccountExists
	}
	b.registered[req.Identifier] = req.Password
	b.signUps = append(b.signUps, req)
	return User{ID: "u-" + req.Identifier, Identifier: req.Identifier, DisplayName: req.Profile.DisplayName, ProfileComplete: true}, nil
}

func (b *fakeBackend) SendCode(_ context.Context, identifier string, _ IdentifierType, _ FlowVariant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, identifier)
	return nil
}

func (b *fakeBackend) CompleteProfile(_ context.Context, user User, profile Profile) (User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles = append(b.profiles, profile)
	user.DisplayName = profile.DisplayName
	user.ProfileComplete = true
	return user, nil
}

func (b *fakeBackend) RequestPasswordReset(_ context.Context, identifier string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets = append(b.resets, identifier)
	return nil
}

// waitGate blocks until gate is closed. A nil gate never blocks.
func waitGate(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) holdSignIns(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signInGate = gate
}

func (b *fakeBackend) holdValidations(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codeGate = gate
}

func (b *fakeBackend) validations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validateCalls
}

func (b *fakeBackend) addCode(code string, user User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[code] = user
}

func (b *fakeBackend) register(identifier, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered[identifier] = password
}

func (b *fakeBackend) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

type fakeDelegate struct {
	disposition Disposition
	variants    []FlowVariant
	finished    []FinishResult
}

func (d *fakeDelegate) WillPresent(v FlowVariant) Disposition {
	d.variants = append(d.variants, v)
	return d.disposition
}

func (d *fakeDelegate) DidFinish(r FinishResult) { d.finished = append(d.finished, r) }

type harness struct {
	t        *testing.T
	exec     *mainloop.Manual
	host     *Host
	backend  *fakeBackend
	surface  *fakeSurface
	delegate *fakeDelegate
	fatals   []error
	outputs  []Output
	now      time.Time
}

type harnessOption func(*harness, *Builder)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		exec:     mainloop.NewManual(),
		backend:  newFakeBackend(),
		surface:  newFakeSurface(),
		delegate: &fakeDelegate{disposition: Continue()},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := DefaultConfig()
	cfg.Flow.PhoneEnabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	b := New().
		WithConfig(cfg).
		WithExecutor(h.exec).
		WithLogger(zap.NewNop()).
		WithStatusFetcher(h.backend).
		WithCodeValidator(h.backend).
		WithAuthenticator(h.backend).
		WithDelegate(h.delegate).
		WithClock(func() time.Time { return h.now }).
		WithFatalHandler(func(err error) { h.fatals = append(h.fatals, err) })
	for _, opt := range opts {
		opt(h, b)
	}

	host, err := b.Build()
	require.NoError(t, err)
	h.host = host
	t.Cleanup(host.Close)
	return h
}

func (h *harness) record(out Output) { h.outputs = append(h.outputs, out) }

func (h *harness) start(input Input) {
	h.host.Start(input, h.record)
	h.exec.Drain()
}

func (h *harness) startEmail() {
	h.start(ByLoginMethod(EmailMethod(), h.surface, nil, nil))
}

func (h *harness) dispatch(a Action) error {
	err := h.host.Dispatch(a)
	h.exec.Drain()
	return err
}

func (h *harness) settle(what string, cond func() bool) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(h.t, h.exec.DrainUntil(ctx, cond), "waiting for %s", what)
}

func (h *harness) waitTop(kind ScreenKind) {
	h.t.Helper()
	h.settle("screen "+kind.String(), func() bool { return h.surface.top().Kind == kind })
}

func (h *harness) waitOutputs(n int) {
	h.t.Helper()
	h.settle("outputs", func() bool { return len(h.outputs) >= n })
}

func (h *harness) waitIdle(kind ScreenKind) {
	h.t.Helper()
	h.settle("loading "+kind.String(), func() bool { return !h.surface.loading[kind] })
}

// toCode submits identifier and waits for the code step with the first code sent.
func (h *harness) toCode(identifier string) {
	h.t.Helper()
	require.NoError(h.t, h.dispatch(SubmitIdentifier(identifier)))
	h.waitTop(ScreenCode)
	h.settle("code sent", func() bool { return h.backend.sentCount() > 0 && !h.surface.loading[ScreenCode] })
}

func screenKinds(screens []Screen) string {
	names := make([]string, len(screens))
	for i, s := range screens {
		names[i] = s.Kind.String()
	}
	return strings.Join(names, ">")
}
