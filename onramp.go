package onramp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/internal/runtime"
	"github.com/aretw0/onramp/pkg/adapters/memory"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/identity"
	"github.com/aretw0/onramp/pkg/observability"
	"github.com/aretw0/onramp/pkg/ports"
	"github.com/aretw0/onramp/pkg/registry"
	"github.com/aretw0/onramp/pkg/risk"
	"github.com/aretw0/onramp/pkg/session"
)

// Version is the library version reported by the CLI and the adapters.
const Version = "0.4.0"

// Engine is the high-level entry point for the onramp library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	registry *registry.Registry

	store     ports.SessionStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	algorithm identity.Algorithm
	threshold *float64
	hooks     domain.LifecycleHooks
	metrics   *observability.Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithRegistry replaces the embedded default protocol.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMetrics records Prometheus metrics for every call.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAlgorithm selects the identity hash (default: sha256).
func WithAlgorithm(alg identity.Algorithm) Option {
	return func(e *Engine) {
		e.algorithm = alg
	}
}

// WithRiskThreshold overrides the integrity score below which a verdict is elevated.
func WithRiskThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.threshold = &threshold
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// New initializes an Engine bound to the identity salt.
// A missing salt is a configuration error: callers must not start serving.
func New(salt string, opts ...Option) (*Engine, error) {
	eng := &Engine{algorithm: identity.AlgorithmSHA256}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.registry == nil {
		eng.registry = registry.Default()
	}

	anchor, err := identity.New(salt, identity.WithAlgorithm(eng.algorithm))
	if err != nil {
		return nil, err
	}

	var riskOpts []risk.Option
	if eng.threshold != nil {
		riskOpts = append(riskOpts, risk.WithThreshold(*eng.threshold))
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	hooks := eng.hooks
	if eng.metrics != nil {
		hooks = domain.ComposeHooks(eng.metrics.Hooks(), hooks)
	}
	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.clock != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(eng.clock))
	}

	eng.runtime = runtime.NewEngine(eng.registry, anchor, risk.New(riskOpts...), eng.sessions, runtimeOpts...)
	eng.logger.Debug("Engine initialized",
		"steps", eng.registry.Len(),
		"store", fmt.Sprintf("%T", eng.store),
		"algorithm", eng.algorithm,
	)
	return eng, nil
}

// Advance executes a step command ("next" or a step id) for the user.
// Unknown and locked steps return both an explanatory payload and an error.
func (e *Engine) Advance(ctx context.Context, platformUserID, command string) (*domain.ResponsePayload, error) {
	start := time.Now()
	payload, err := e.runtime.Advance(ctx, platformUserID, command)
	if e.metrics != nil {
		e.metrics.ObserveAdvance(payload, err, time.Since(start))
	}
	return payload, err
}

// Reset deletes the user's session; the next Advance starts from the first step.
func (e *Engine) Reset(ctx context.Context, platformUserID string) error {
	return e.runtime.Reset(ctx, platformUserID)
}

// Session returns a snapshot of the user's session.
func (e *Engine) Session(ctx context.Context, platformUserID string) (*domain.Session, error) {
	return e.runtime.Session(ctx, platformUserID)
}

// Sessions lists users with a stored session.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.runtime.Sessions(ctx)
}

// Steps returns the protocol in order.
func (e *Engine) Steps() []domain.StepDefinition {
	return e.runtime.Steps()
}

// Store returns the configured session store.
func (e *Engine) Store() ports.SessionStore {
	return e.store
}
