package ports

import (
	"context"

	"github.com/aretw0/onramp/pkg/domain"
)

// SessionStore defines the interface for persisting per-user sessions.
// The store exclusively owns persisted records; callers only ever hold copies.
type SessionStore interface {
	// Save persists the session for a given platform user id.
	Save(ctx context.Context, userID string, session *domain.Session) error

	// Load retrieves the session for a given platform user id.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, userID string) (*domain.Session, error)

	// Delete removes the session for a given platform user id.
	Delete(ctx context.Context, userID string) error
}

// Lister is implemented by stores that can enumerate known sessions.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
