package authflow

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/logging"
	"go.uber.org/zap"
)

// Builder configures a [Host]. Builders are single use.
type Builder struct {
	config Config
	exec   Executor
	logger *zap.Logger

	fetcher   StatusFetcher
	validator CodeValidator
	auth      Authenticator
	identity  IdentityManager
	delegate  Delegate
	terms     TermsProvider
	auditSink AuditSink

	factories map[AuthenticationType]CoordinatorFactory
	fatal     func(error)
	now       func() time.Time

	built bool
}

// New returns a builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		factories: defaultCoordinatorFactories(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithExecutor sets the executor all flow state is confined to. Required.
func (b *Builder) WithExecutor(exec Executor) *Builder {
	b.exec = exec
	return b
}

// WithLogger sets the logger. Without one the host logs nothing.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithStatusFetcher(f StatusFetcher) *Builder {
	b.fetcher = f
	return b
}

func (b *Builder) WithCodeValidator(v CodeValidator) *Builder {
	b.validator = v
	return b
}

func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.auth = a
	return b
}

// WithIdentityManager sets the manager that owns redirect URL parsing and the
// current user. Without one, URLs are parsed with Config.Deeplink.
func (b *Builder) WithIdentityManager(m IdentityManager) *Builder {
	b.identity = m
	return b
}

func (b *Builder) WithDelegate(d Delegate) *Builder {
	b.delegate = d
	return b
}

func (b *Builder) WithTermsProvider(p TermsProvider) *Builder {
	b.terms = p
	return b
}

// WithAuditSink sets the sink of the audit dispatcher. Config.Audit.Enabled
// must be true for events to be emitted.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithCoordinatorFactory replaces the coordinator built for authType.
func (b *Builder) WithCoordinatorFactory(authType AuthenticationType, factory CoordinatorFactory) *Builder {
	b.factories[authType] = factory
	return b
}

// WithFatalHandler replaces the handler of precondition violations. The
// default logs the violation and panics with the *PreconditionError.
func (b *Builder) WithFatalHandler(fn func(error)) *Builder {
	b.fatal = fn
	return b
}

// WithClock sets the time source used for throttling, age checks and metrics.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns the host.
func (b *Builder) Build() (*Host, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.exec == nil {
		return nil, errors.New("executor is required")
	}
	if b.fetcher == nil {
		return nil, errors.New("status fetcher is required")
	}
	if b.validator == nil {
		return nil, errors.New("code validator is required")
	}
	if b.auth == nil {
		return nil, errors.New("authenticator is required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("authflow")

	now := b.now
	if now == nil {
		now = time.Now
	}

	fatal := b.fatal
	if fatal == nil {
		fatal = func(err error) {
			logger.Error("precondition violated", zap.Error(err))
			panic(err)
		}
	}

	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewZapSink(logger)
	}

	factories := make(map[AuthenticationType]CoordinatorFactory, len(b.factories))
	for k, v := range b.factories {
		factories[k] = v
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		cfg:       cloneConfig(b.config),
		exec:      b.exec,
		logger:    logger,
		fetcher:   b.fetcher,
		validator: b.validator,
		auth:      b.auth,
		identity:  b.identity,
		delegate:  b.delegate,
		terms:     b.terms,
		metrics:   NewMetrics(b.config.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, sink),
		factories: factories,
		fatal:     fatal,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
	}

	b.built = true
	return h, nil
}

// NewLogger builds a zap logger from cfg.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	return logging.New(cfg.internal())
}
