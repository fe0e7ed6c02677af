// Package identity derives the stable, irreversible secure identifier of a
// platform user (the "Identity Anchor").
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/zeebo/blake3"
)

// Algorithm selects the one-way hash used for derivation.
type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmBLAKE3 Algorithm = "blake3"
)

// DisplayPrefix is prepended to the short, user-visible form of a secure id.
const DisplayPrefix = "USR-"

// Anchor derives secure identifiers under a fixed salt.
// It is immutable and safe for concurrent use.
type Anchor struct {
	salt      string
	algorithm Algorithm
}

// Option configures the Anchor.
type Option func(*Anchor)

// WithAlgorithm selects the hash algorithm (default: sha256).
func WithAlgorithm(alg Algorithm) Option {
	return func(a *Anchor) {
		a.algorithm = alg
	}
}

// New creates an Anchor bound to salt. A missing salt is a configuration
// error and must abort startup.
func New(salt string, opts ...Option) (*Anchor, error) {
	a := &Anchor{salt: salt, algorithm: AlgorithmSHA256}
	for _, opt := range opts {
		opt(a)
	}
	if salt == "" {
		return nil, fmt.Errorf("%w: identity salt is not set", domain.ErrConfiguration)
	}
	switch a.algorithm {
	case AlgorithmSHA256, AlgorithmBLAKE3:
	default:
		return nil, fmt.Errorf("%w: unsupported identity algorithm %q", domain.ErrConfiguration, a.algorithm)
	}
	return a, nil
}

// Algorithm returns the configured hash algorithm.
func (a *Anchor) Algorithm() Algorithm {
	return a.algorithm
}

// Derive returns the secure identifier of platformUserID.
func (a *Anchor) Derive(platformUserID string) (string, error) {
	return derive(a.algorithm, platformUserID, a.salt)
}

// Derive computes the SHA-256 secure identifier for platformUserID under salt.
func Derive(platformUserID, salt string) (string, error) {
	return derive(AlgorithmSHA256, platformUserID, salt)
}

func derive(alg Algorithm, platformUserID, salt string) (string, error) {
	if platformUserID == "" {
		return "", fmt.Errorf("%w: platform user id is empty", domain.ErrInvalidInput)
	}
	if salt == "" {
		return "", fmt.Errorf("%w: identity salt is not set", domain.ErrConfiguration)
	}

	msg := encode(platformUserID, salt)
	var sum [32]byte
	switch alg {
	case AlgorithmBLAKE3:
		sum = blake3.Sum256(msg)
	case AlgorithmSHA256, "":
		sum = sha256.Sum256(msg)
	default:
		return "", fmt.Errorf("%w: unsupported identity algorithm %q", domain.ErrConfiguration, alg)
	}
	return hex.EncodeToString(sum[:]), nil
}

// encode length-prefixes the user id so that no two (id, salt) pairs share
// a byte representation.
func encode(platformUserID, salt string) []byte {
	buf := make([]byte, 8, 8+len(platformUserID)+len(salt))
	binary.BigEndian.PutUint64(buf, uint64(len(platformUserID)))
	buf = append(buf, platformUserID...)
	buf = append(buf, salt...)
	return buf
}

// Display returns the short form shown to users, e.g. "USR-9F3A7C2B".
func Display(secureID string) string {
	if len(secureID) > 8 {
		secureID = secureID[:8]
	}
	return DisplayPrefix + strings.ToUpper(secureID)
}
