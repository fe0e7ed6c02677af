package identity_test

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/identity"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_KnownVector(t *testing.T) {
	msg := make([]byte, 8)
	binary.BigEndian.PutUint64(msg, 2)
	msg = append(msg, "u1salt"...)
	sum := sha256.Sum256(msg)

	got, err := identity.Derive("u1", "salt")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
	assert.Len(t, got, 64)
}

func TestDerive_Errors(t *testing.T) {
	_, err := identity.Derive("", "salt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = identity.Derive("u1", "")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = identity.New("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = identity.New("salt", identity.WithAlgorithm("md5"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestAnchor_Algorithms(t *testing.T) {
	sha, err := identity.New("salt")
	require.NoError(t, err)
	assert.Equal(t, identity.AlgorithmSHA256, sha.Algorithm())

	b3, err := identity.New("salt", identity.WithAlgorithm(identity.AlgorithmBLAKE3))
	require.NoError(t, err)

	a, err := sha.Derive("u1")
	require.NoError(t, err)
	b, err := b3.Derive("u1")
	require.NoError(t, err)

	plain, err := identity.Derive("u1", "salt")
	require.NoError(t, err)
	assert.Equal(t, plain, a)
	assert.NotEqual(t, a, b)
	assert.Len(t, b, 64)
}

func TestDerive_LengthPrefixSeparatesBoundaries(t *testing.T) {
	// Plain concatenation would make these collide.
	a, err := identity.Derive("ab", "c")
	require.NoError(t, err)
	b, err := identity.Derive("a", "bc")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "USR-9F3A7C2B", identity.Display("9f3a7c2b11223344"))
	assert.Equal(t, "USR-AB", identity.Display("ab"))
}

func TestDerive_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	nonEmpty := gen.AlphaString().SuchThat(func(s string) bool { return s != "" })

	properties.Property("derivation is deterministic", prop.ForAll(
		func(userID, salt string) bool {
			a, errA := identity.Derive(userID, salt)
			b, errB := identity.Derive(userID, salt)
			return errA == nil && errB == nil && a == b
		},
		nonEmpty, nonEmpty,
	))

	properties.Property("different salts give different ids", prop.ForAll(
		func(userID, salt string) bool {
			a, _ := identity.Derive(userID, salt)
			b, _ := identity.Derive(userID, salt+"x")
			return a != b
		},
		nonEmpty, nonEmpty,
	))

	properties.Property("display form is prefix plus eight upper hex chars", prop.ForAll(
		func(userID string) bool {
			id, err := identity.Derive(userID, "salt")
			if err != nil {
				return false
			}
			d := identity.Display(id)
			return len(d) == len(identity.DisplayPrefix)+8 &&
				strings.HasPrefix(d, identity.DisplayPrefix) &&
				d == strings.ToUpper(d)
		},
		nonEmpty,
	))

	properties.TestingRun(t)
}
