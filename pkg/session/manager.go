package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(userID) after unlocking.
func (m *Manager) acquire(userID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// WithLock executes a function while holding the lock for the user.
func (m *Manager) WithLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	entry := m.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(userID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, userID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("%w: failed to acquire distributed lock: %w", domain.ErrStorageUnavailable, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"user_id", userID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// MutateFunc changes a working copy of a session. It reports whether the copy
// must be persisted. Returning an error discards the copy.
type MutateFunc func(session *domain.Session, isNew bool) (changed bool, err error)

// Update performs an atomic read-modify-write of the user's session.
//
// The session is loaded (or created with newFn when absent), fn mutates a deep
// copy, and the copy is saved only if fn reports a change. If fn fails or the
// save fails, nothing becomes visible in the store. The returned session is
// the working copy after fn ran.
func (m *Manager) Update(ctx context.Context, userID string, newFn func() *domain.Session, fn MutateFunc) (*domain.Session, error) {
	var result *domain.Session
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		current, isNew, err := m.loadOrNew(ctx, userID, newFn)
		if err != nil {
			return err
		}

		working := current.Snapshot()
		changed, err := fn(working, isNew)
		if err != nil {
			return err
		}

		if changed {
			if err := m.store.Save(ctx, userID, working); err != nil {
				return fmt.Errorf("%w: failed to persist session: %w", domain.ErrStorageUnavailable, err)
			}
		}
		result = working
		return nil
	})
	return result, err
}

func (m *Manager) loadOrNew(ctx context.Context, userID string, newFn func() *domain.Session) (*domain.Session, bool, error) {
	session, err := m.store.Load(ctx, userID)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("%w: failed to load session: %w", domain.ErrStorageUnavailable, err)
	}
	return newFn(), true, nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, userID string) (*domain.Session, error) {
	var session *domain.Session
	err := m.WithLock(ctx, userID, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		return err
	})
	return session, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, userID string) error {
	return m.WithLock(ctx, userID, func(ctx context.Context) error {
		if err := m.store.Delete(ctx, userID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		return nil
	})
}

// List delegates to the store when it can enumerate sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	lister, ok := m.store.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list sessions", m.store)
	}
	return lister.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
