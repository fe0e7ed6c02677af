package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/onramp"
	"github.com/aretw0/onramp/internal/config"
	"github.com/aretw0/onramp/internal/inbox"
	"github.com/aretw0/onramp/pkg/adapters/file"
	"github.com/aretw0/onramp/pkg/adapters/memory"
	redisadapter "github.com/aretw0/onramp/pkg/adapters/redis"
	"github.com/aretw0/onramp/pkg/adapters/sqlite"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/identity"
	"github.com/aretw0/onramp/pkg/observability"
	"github.com/aretw0/onramp/pkg/persistence/middleware"
	"github.com/aretw0/onramp/pkg/ports"
	"github.com/aretw0/onramp/pkg/registry"
)

// Runtime bundles the engine with the resources opened for it.
type Runtime struct {
	Engine  *onramp.Engine
	Metrics *observability.Metrics
	// Inbox is nil when no journal path is configured.
	Inbox *inbox.Inbox

	closers []func() error
}

// Close releases the store connection and the inbox journal.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build validates cfg and wires the engine: protocol, store, locker,
// encryption, metrics and inbox.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{Metrics: observability.NewMetrics()}

	store, locker, closeStore, err := OpenStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	if cfg.Encryption.Enabled() {
		mw, err := middleware.NewEncryptionMiddleware(cfg.Encryption.Middleware())
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		store = middleware.Chain(store, mw)
		logger.Debug("Session encryption enabled", "fallback_keys", len(cfg.Encryption.FallbackSecrets))
	}

	opts := []onramp.Option{
		onramp.WithStore(store),
		onramp.WithLogger(logger),
		onramp.WithMetrics(rt.Metrics),
		onramp.WithAlgorithm(identity.Algorithm(cfg.Algorithm)),
		onramp.WithRiskThreshold(cfg.RiskThreshold),
		onramp.WithLifecycleHooks(debugHooks(logger)),
	}
	if locker != nil {
		opts = append(opts, onramp.WithLocker(locker, cfg.Storage.LockTTL))
	}
	if cfg.ProtocolFile != "" {
		reg, err := registry.LoadFile(cfg.ProtocolFile)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		opts = append(opts, onramp.WithRegistry(reg))
	}

	rt.Engine, err = onramp.New(cfg.Salt, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	if cfg.Inbox.Path != "" {
		inboxOpts := []inbox.Option{inbox.WithLogger(logger)}
		if len(cfg.Inbox.Keywords) > 0 {
			inboxOpts = append(inboxOpts, inbox.WithKeywords(cfg.Inbox.Keywords))
		}
		rt.Inbox, err = inbox.Open(cfg.Inbox.Path, inboxOpts...)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, rt.Inbox.Close)
	}

	return rt, nil
}

// OpenStore opens the configured session store. The locker is only set for
// drivers shared between processes.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.NewStore(), nil, noop, nil

	case config.DriverFile:
		logger.Debug("Using file store", "path", cfg.Path)
		return file.New(cfg.Path), nil, noop, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Debug("Using sqlite store", "path", cfg.Path)
		return store, nil, store.Close, nil

	case config.DriverRedis:
		store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisadapter.WithPrefix(cfg.Redis.Prefix),
			redisadapter.WithTTL(cfg.Redis.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("%w: redis %s: %w", domain.ErrStorageUnavailable, cfg.Redis.Addr, err)
		}
		logger.Debug("Using redis store", "addr", cfg.Redis.Addr, "prefix", store.Prefix())
		return store, redisadapter.NewLocker(store.Client(), store.Prefix()), store.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown storage driver %q", domain.ErrConfiguration, cfg.Driver)
	}
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepCompleted: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step completed", "user_id", e.UserID, "step_id", e.StepID)
		},
		OnReplay: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step replayed", "user_id", e.UserID, "step_id", e.StepID)
		},
		OnRejected: func(ctx context.Context, e *domain.RejectionEvent) {
			logger.Debug("Step rejected", "user_id", e.UserID, "step_id", e.StepID, "reason", e.Reason)
		},
	}
}
