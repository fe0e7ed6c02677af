package middleware

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/ports"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretSize is the shortest secret accepted for key derivation.
	MinSecretSize = 16

	sealVersion byte = 0x01
	keyInfo          = "onramp.session.v1"
)

var (
	// ErrSealed is returned when a stored session cannot be opened.
	ErrSealed = errors.New("sealed session cannot be opened")
)

// EncryptionConfig holds the secrets used to derive session keys.
type EncryptionConfig struct {
	// Secret derives the key used for sealing new data.
	Secret []byte

	// FallbackSecrets are tried in order when opening fails with Secret.
	// This enables zero-downtime key rotation.
	FallbackSecrets [][]byte
}

type encryptionMiddleware struct {
	next     ports.SessionStore
	active   []byte
	fallback [][]byte
}

// NewEncryptionMiddleware creates a middleware that seals sessions with
// XChaCha20-Poly1305 under keys derived from the configured secrets via
// HKDF-SHA256. The platform user id is bound as additional data, so a sealed
// session cannot be replayed under another user.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	active, err := deriveKey(config.Secret)
	if err != nil {
		return nil, err
	}
	fallback := make([][]byte, 0, len(config.FallbackSecrets))
	for _, secret := range config.FallbackSecrets {
		key, err := deriveKey(secret)
		if err != nil {
			return nil, fmt.Errorf("fallback secret: %w", err)
		}
		fallback = append(fallback, key)
	}

	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:     next,
			active:   active,
			fallback: fallback,
		}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, userID string, session *domain.Session) error {
	plainText, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sealed, err := seal(plainText, m.active, []byte(userID))
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	// The envelope keeps what stores need for indexing and optimistic writes.
	envelope := &domain.Session{
		PlatformUserID: session.PlatformUserID,
		CurrentStep:    session.CurrentStep,
		RiskFlag:       domain.RiskUnknown,
		CompletedSteps: []string{},
		Version:        session.Version,
		CreatedAt:      session.CreatedAt,
		LastUpdated:    session.LastUpdated,
		Sealed:         sealed,
	}
	return m.next.Save(ctx, userID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, userID string) (*domain.Session, error) {
	envelope, err := m.next.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(envelope.Sealed) == 0 {
		return nil, fmt.Errorf("%w: missing sealed payload", ErrSealed)
	}

	plainText, err := openWithRotation(envelope.Sealed, []byte(userID), m.active, m.fallback)
	if err != nil {
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(plainText, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal opened session: %w", err)
	}
	return &session, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, userID string) error {
	return m.next.Delete(ctx, userID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	lister, ok := m.next.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list sessions", m.next)
	}
	return lister.List(ctx)
}

func deriveKey(secret []byte) ([]byte, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("%w: encryption secret must be at least %d bytes", domain.ErrConfiguration, MinSecretSize)
	}
	reader := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return key, nil
}

// seal produces [version][nonce][ciphertext+tag].
func seal(plainText, key, userID []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plainText)+aead.Overhead())
	out[0] = sealVersion
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, err
	}
	nonce := out[1 : 1+chacha20poly1305.NonceSizeX]

	return aead.Seal(out, nonce, plainText, aad(userID)), nil
}

func openWithRotation(sealed, userID, active []byte, fallback [][]byte) ([]byte, error) {
	if plain, err := open(sealed, active, userID); err == nil {
		return plain, nil
	}
	for _, key := range fallback {
		if plain, err := open(sealed, key, userID); err == nil {
			return plain, nil
		}
	}
	return nil, fmt.Errorf("%w: decryption failed with all available keys", ErrSealed)
}

func open(sealed, key, userID []byte) ([]byte, error) {
	if len(sealed) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, errors.New("sealed payload too short")
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("sealed payload version %d is not supported", sealed[0])
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	return aead.Open(nil, nonce, sealed[1+chacha20poly1305.NonceSizeX:], aad(userID))
}

func aad(userID []byte) []byte {
	return append([]byte{sealVersion}, userID...)
}
