package identity_test

import (
	"regexp"
	"testing"

	"github.com/aretw0/onramp/pkg/identity"
	"github.com/stretchr/testify/assert"
)

var tokenPattern = regexp.MustCompile(`^[A-Z]+-[0-9A-F]{8}$`)

func TestToken(t *testing.T) {
	slot := identity.Token("abc", "slt")
	assert.Regexp(t, tokenPattern, slot)
	assert.Equal(t, slot, identity.Token("abc", "SLT"), "prefix is case-insensitive")
	assert.NotEqual(t, slot, identity.Token("abd", "SLT"))
	assert.NotEqual(t, slot[4:], identity.Token("abc", "AKY")[4:])
}

func TestTokens(t *testing.T) {
	assert.Nil(t, identity.Tokens("abc", nil))

	got := identity.Tokens("abc", []string{"SLT", "aky"})
	assert.Len(t, got, 2)
	assert.Equal(t, identity.Token("abc", "SLT"), got["SLT"])
	assert.Equal(t, identity.Token("abc", "AKY"), got["AKY"])
}
