package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Token derives a deterministic per-user token such as "SLT-7B2D9E1F" from a
// secure id. The same secure id and prefix always yield the same token.
func Token(secureID, prefix string) string {
	prefix = strings.ToUpper(prefix)
	sum := sha256.Sum256([]byte(prefix + "\x00" + secureID))
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(sum[:4]))
}

// Tokens derives one token per prefix, keyed by prefix.
func Tokens(secureID string, prefixes []string) map[string]string {
	if len(prefixes) == 0 {
		return nil
	}
	out := make(map[string]string, len(prefixes))
	for _, p := range prefixes {
		out[strings.ToUpper(p)] = Token(secureID, p)
	}
	return out
}
