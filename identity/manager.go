package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/deeplink"
	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/MrEthical07/authflow/internal/stores"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/MrEthical07/authflow/password"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures a [Manager].
type Config struct {
	Prefix               string                `koanf:"prefix"`
	CodeLength           int                   `koanf:"code_length"`
	CodeTTL              time.Duration         `koanf:"code_ttl"`
	SessionTTL           time.Duration         `koanf:"session_ttl"`
	PersistentSessionTTL time.Duration         `koanf:"persistent_session_ttl"`
	TermsVersion         int64                 `koanf:"terms_version"`
	Deeplink             deeplink.ClientConfig `koanf:"deeplink"`
	Password             password.Config       `koanf:"password"`
	Token                jwt.Config            `koanf:"-"`
}

// DefaultConfig pairs with authflow.DefaultConfig. Token keys must still be set.
func DefaultConfig() Config {
	return Config{
		Prefix:               "af",
		CodeLength:           6,
		CodeTTL:              10 * time.Minute,
		SessionTTL:           time.Hour,
		PersistentSessionTTL: 30 * 24 * time.Hour,
		TermsVersion:         1,
		Deeplink:             deeplink.ClientConfig{Scheme: "authflow"},
		Password:             password.DefaultConfig(),
		Token:                jwt.Config{TTL: time.Hour, SigningMethod: jwt.MethodEd25519},
	}
}

func (c Config) validate() error {
	switch {
	case c.CodeLength < 4 || c.CodeLength > 10:
		return errors.New("identity: CodeLength must be between 4 and 10")
	case c.CodeTTL <= 0:
		return errors.New("identity: CodeTTL must be > 0")
	case c.SessionTTL <= 0 || c.PersistentSessionTTL < c.SessionTTL:
		return errors.New("identity: session TTLs must be > 0 and PersistentSessionTTL >= SessionTTL")
	case c.Deeplink.Scheme == "":
		return errors.New("identity: Deeplink.Scheme is required")
	}
	return nil
}

// Option customizes a [Manager].
type Option func(*Manager)

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// Manager is the reference backend. Safe for concurrent use.
type Manager struct {
	cfg      Config
	accounts *stores.AccountStore
	codes    *stores.CodeStore
	sessions *stores.SessionStore
	hasher   *password.Hasher
	tokens   *jwt.Manager
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

var (
	_ authflow.StatusFetcher   = (*Manager)(nil)
	_ authflow.CodeValidator   = (*Manager)(nil)
	_ authflow.Authenticator   = (*Manager)(nil)
	_ authflow.IdentityManager = (*Manager)(nil)
	_ authflow.TermsProvider   = (*Manager)(nil)
)

// New builds a manager over rdb.
func New(rdb redis.UniversalClient, cfg Config, opts ...Option) (*Manager, error) {
	if rdb == nil {
		return nil, errors.New("identity: redis client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Manager{cfg: cfg, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	m.logger = m.logger.Named("identity")

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	tokenCfg := cfg.Token
	tokenCfg.Now = m.now
	tokens, err := jwt.NewManager(tokenCfg)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	m.hasher = hasher
	m.tokens = tokens
	m.accounts = stores.NewAccountStore(rdb, cfg.Prefix+":acct")
	m.codes = stores.NewCodeStore(rdb, cfg.Prefix+":code", m.now)
	m.sessions = stores.NewSessionStore(rdb, cfg.Prefix+":sess")
	return m, nil
}

// Tokens exposes the session token verifier.
func (m *Manager) Tokens() *jwt.Manager { return m.tokens }

// FetchStatus reports whether identifier is free for sign up.
func (m *Manager) FetchStatus(ctx context.Context, identifier string, _ authflow.IdentifierType) (authflow.Status, error) {
	taken, err := m.accounts.Exists(ctx, identifier)
	if err != nil {
		return authflow.Status{}, err
	}
	return authflow.Status{Available: !taken}, nil
}

// SendCode issues a fresh code, revoking the previous one for identifier.
func (m *Manager) SendCode(ctx context.Context, identifier string, idType authflow.IdentifierType, variant authflow.FlowVariant) error {
	code, err := newCode(m.cfg.CodeLength)
	if err != nil {
		return err
	}
	record := &stores.CodeRecord{Identifier: identifier, IdentifierType: int(idType), Variant: int(variant)}
	if err := m.codes.Issue(ctx, code, record, m.cfg.CodeTTL); err != nil {
		return err
	}

	codeCtx := deeplink.CodeContextLogin
	if variant == authflow.VariantSignup {
		codeCtx = deeplink.CodeContextSignup
	}
	return m.notifier.Notify(ctx, Message{
		Kind:           MessageCode,
		Identifier:     identifier,
		IdentifierType: idType,
		Variant:        variant,
		Code:           code,
		Link:           deeplink.ValidateURL(m.cfg.Deeplink, code, codeCtx, true),
	})
}

// Validate consumes code. The first validation for an unknown identifier
// creates a passwordless account with an incomplete profile.
func (m *Manager) Validate(ctx context.Context, code string, persistUser bool) (authflow.User, error) {
	record, err := m.codes.Consume(ctx, code)
	switch {
	case errors.Is(err, stores.ErrNotFound), errors.Is(err, stores.ErrExpired):
		return authflow.User{}, authflow.ErrCodeExpired
	case err != nil:
		return authflow.User{}, err
	}

	acct, err := m.accounts.Get(ctx, record.Identifier)
	if errors.Is(err, stores.ErrNotFound) {
		acct = &stores.Account{
			ID:             uuid.NewString(),
			Identifier:     record.Identifier,
			IdentifierType: record.IdentifierType,
			CreatedAt:      m.now().Unix(),
		}
		if err = m.accounts.Create(ctx, acct); errors.Is(err, stores.ErrExists) {
			acct, err = m.accounts.Get(ctx, record.Identifier)
		}
	}
	if err != nil {
		return authflow.User{}, err
	}
	return m.openSession(ctx, acct, nil, persistUser)
}

// SignIn checks the password of an existing account.
func (m *Manager) SignIn(ctx context.Context, identifier, plain string, scopes []string) (authflow.User, error) {
	acct, err := m.accounts.Get(ctx, identifier)
	if errors.Is(err, stores.ErrNotFound) {
		return authflow.User{}, authflow.ErrInvalidCredentials
	}
	if err != nil {
		return authflow.User{}, err
	}
	if acct.PasswordHash == "" {
		return authflow.User{}, authflow.ErrInvalidCredentials
	}

	ok, err := m.hasher.Verify(plain, acct.PasswordHash)
	if errors.Is(err, password.ErrTooLong) || (err == nil && !ok) {
		return authflow.User{}, authflow.ErrInvalidCredentials
	}
	if err != nil {
		return authflow.User{}, err
	}

	if stale, _ := m.hasher.NeedsRehash(acct.PasswordHash); stale {
		if hash, err := m.hasher.Hash(plain); err == nil {
			if err := m.accounts.SetPasswordHash(ctx, identifier, hash); err != nil {
				m.logger.Warn("password rehash failed", zap.String("identifier", logging.MaskIdentifier(identifier)), zap.Error(err))
			}
		}
	}
	return m.openSession(ctx, acct, scopes, true)
}

// SignUp registers a password account.
func (m *Manager) SignUp(ctx context.Context, req authflow.SignUpRequest) (authflow.User, error) {
	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		return authflow.User{}, err
	}
	acct := &stores.Account{
		ID:              uuid.NewString(),
		Identifier:      req.Identifier,
		IdentifierType:  int(req.IdentifierType),
		PasswordHash:    hash,
		DisplayName:     req.Profile.DisplayName,
		BirthDate:       req.Profile.BirthDate,
		ProfileComplete: req.Profile.DisplayName != "",
		CreatedAt:       m.now().Unix(),
	}
	if err := m.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, stores.ErrExists) {
			return authflow.User{}, authflow.ErrAccountExists
		}
		return authflow.User{}, err
	}
	return m.openSession(ctx, acct, req.Scopes, true)
}

// CompleteProfile stores the profile of a freshly validated account.
func (m *Manager) CompleteProfile(ctx context.Context, user authflow.User, profile authflow.Profile) (authflow.User, error) {
	if err := m.accounts.UpdateProfile(ctx, user.Identifier, profile.DisplayName, profile.BirthDate); err != nil {
		return authflow.User{}, err
	}
	user.DisplayName = profile.DisplayName
	user.ProfileComplete = true
	return user, nil
}

// RequestPasswordReset sends a reset link. Unknown identifiers succeed
// silently so the call cannot be used to probe for accounts.
func (m *Manager) RequestPasswordReset(ctx context.Context, identifier string) error {
	exists, err := m.accounts.Exists(ctx, identifier)
	if err != nil {
		return err
	}
	if !exists {
		m.logger.Debug("password reset for unknown identifier", zap.String("identifier", logging.MaskIdentifier(identifier)))
		return nil
	}
	return m.notifier.Notify(ctx, Message{
		Kind:       MessagePasswordReset,
		Identifier: identifier,
		Link:       deeplink.PasswordURL(m.cfg.Deeplink, identifier, nil),
	})
}

// CurrentUser returns the user of the persisted session, or nil.
func (m *Manager) CurrentUser(ctx context.Context) (*authflow.User, error) {
	sess, err := m.sessions.Current(ctx)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acct, err := m.accounts.GetByID(ctx, sess.UserID)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user := userFrom(acct, sess.ScopeList(), sess.Persistent)
	token, err := m.tokens.Issue(jwt.Session{
		UserID:     acct.ID,
		SessionID:  sess.ID,
		Identifier: acct.Identifier,
		Scopes:     user.Scopes,
		Persistent: sess.Persistent,
	})
	if err != nil {
		return nil, err
	}
	user.AccessToken = token
	return &user, nil
}

// SignOut ends the persisted session, if any.
func (m *Manager) SignOut(ctx context.Context) error {
	sess, err := m.sessions.Current(ctx)
	if errors.Is(err, stores.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.sessions.Delete(ctx, sess.ID)
}

// ParseRedirectURL classifies raw against the configured redirect scheme.
func (m *Manager) ParseRedirectURL(raw string) (deeplink.Payload, bool) {
	return deeplink.Parse(raw, m.cfg.Deeplink)
}

// FetchUpdatedTerms records that user has seen the current terms version.
func (m *Manager) FetchUpdatedTerms(ctx context.Context, user authflow.User) error {
	acct, err := m.accounts.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if acct.TermsVersion >= m.cfg.TermsVersion {
		return nil
	}
	return m.accounts.SetTermsVersion(ctx, acct.Identifier, m.cfg.TermsVersion)
}

func (m *Manager) openSession(ctx context.Context, acct *stores.Account, scopes []string, persist bool) (authflow.User, error) {
	sid := uuid.NewString()
	ttl := m.cfg.SessionTTL
	if persist {
		ttl = m.cfg.PersistentSessionTTL
	}
	sess := &stores.Session{
		ID:         sid,
		UserID:     acct.ID,
		Scopes:     stores.JoinScopes(scopes),
		Persistent: persist,
		CreatedAt:  m.now().Unix(),
	}
	if err := m.sessions.Save(ctx, sess, ttl, persist); err != nil {
		return authflow.User{}, err
	}

	token, err := m.tokens.Issue(jwt.Session{
		UserID:     acct.ID,
		SessionID:  sid,
		Identifier: acct.Identifier,
		Scopes:     scopes,
		Persistent: persist,
	})
	if err != nil {
		return authflow.User{}, err
	}

	user := userFrom(acct, scopes, persist)
	user.AccessToken = token
	m.logger.Debug("session opened", zap.String("user_id", acct.ID), zap.Bool("persisted", persist))
	return user, nil
}

func userFrom(acct *stores.Account, scopes []string, persist bool) authflow.User {
	return authflow.User{
		ID:              acct.ID,
		Identifier:      acct.Identifier,
		IdentifierType:  authflow.IdentifierType(acct.IdentifierType),
		DisplayName:     acct.DisplayName,
		Scopes:          scopes,
		Persisted:       persist,
		ProfileComplete: acct.ProfileComplete,
	}
}

var ten = big.NewInt(10)

func newCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
