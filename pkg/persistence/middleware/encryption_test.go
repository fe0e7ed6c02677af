package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/onramp/pkg/adapters/memory"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/persistence/middleware"
	"github.com/aretw0/onramp/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	secretA = []byte("correct horse battery staple")
	secretB = []byte("a completely different secret")
)

func sampleSession(userID string) *domain.Session {
	s := domain.NewSession(userID, "step1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.SecureID = "deadbeefcafebabe"
	s.Version = 1
	s.MarkCompleted(domain.StepRecord{StepID: "step1", Narrative: "Node USR-DEADBEEF ready", SecureID: s.SecureID})
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := NewMockStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: secretA})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, "u1", sampleSession("u1")))

	// The underlying store only sees the envelope.
	stored, err := underlying.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored.SecureID)
	assert.Empty(t, stored.Records)
	assert.NotEmpty(t, stored.Sealed)
	assert.NotContains(t, string(stored.Sealed), "USR-DEADBEEF")
	assert.Equal(t, int64(1), stored.Version)

	loaded, err := secure.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeefcafebabe", loaded.SecureID)
	assert.Equal(t, "Node USR-DEADBEEF ready", loaded.Records["step1"].Narrative)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := NewMockStore()
	ctx := context.Background()

	oldMW, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: secretA})
	require.NoError(t, err)
	require.NoError(t, oldMW(underlying).Save(ctx, "u1", sampleSession("u1")))

	// Without the old secret as fallback, the data is unreadable.
	strictMW, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: secretB})
	require.NoError(t, err)
	_, err = strictMW(underlying).Load(ctx, "u1")
	assert.ErrorIs(t, err, middleware.ErrSealed)

	rotatedMW, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		Secret:          secretB,
		FallbackSecrets: [][]byte{secretA},
	})
	require.NoError(t, err)
	loaded, err := rotatedMW(underlying).Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeefcafebabe", loaded.SecureID)
}

func TestEncryptionMiddleware_BoundToUser(t *testing.T) {
	underlying := NewMockStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: secretA})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, "u1", sampleSession("u1")))

	// Copy u1's sealed blob under u2.
	stolen, err := underlying.Load(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, underlying.Save(ctx, "u2", stolen))

	_, err = secure.Load(ctx, "u2")
	assert.ErrorIs(t, err, middleware.ErrSealed)
}

func TestEncryptionMiddleware_PlainSessionRejected(t *testing.T) {
	underlying := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "u1", sampleSession("u1")))

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: secretA})
	require.NoError(t, err)
	_, err = mw(underlying).Load(ctx, "u1")
	assert.ErrorIs(t, err, middleware.ErrSealed)
}

func TestEncryptionMiddleware_InvalidSecret(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: []byte("short")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		Secret:          secretA,
		FallbackSecrets: [][]byte{nil},
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{Secret: secretA})
	require.NoError(t, err)
	ports.RunSessionStoreContract(t, middleware.Chain(memory.NewStore(), mw))
}
