// Package sanitize cleans identifiers and free text coming from transports
// before they reach the engine, the logs or the journal.
package sanitize

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/onramp/pkg/domain"
)

var (
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "ONRAMP_MAX_INPUT_SIZE"
	// MaxIDSize bounds user ids and commands.
	MaxIDSize = 256
)

var (
	ErrInputTooLarge = fmt.Errorf("%w: input exceeds maximum allowed size", domain.ErrInvalidInput)
	ErrInvalidUTF8   = fmt.Errorf("%w: input contains invalid UTF-8 sequences", domain.ErrInvalidInput)
	ErrEmpty         = fmt.Errorf("%w: value is empty", domain.ErrInvalidInput)
	ErrInvalidID     = fmt.Errorf("%w: malformed id", domain.ErrInvalidInput)
)

// Text cleans free text by enforcing size limits, validating UTF-8 and
// stripping dangerous control characters. Newlines and tabs survive.
func Text(input string) (string, error) {
	limit := maxInputSize()
	if len(input) > limit {
		// Reject rather than truncate so results stay deterministic.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	return strip(input, isSafeControl), nil
}

// ID validates an opaque identifier such as a platform user id. The value is
// returned unchanged: ids carrying control characters or surrounding
// whitespace are rejected so that two distinct ids never share a session.
func ID(input string) (string, error) {
	if err := checkID(input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input) == "" {
		return "", ErrEmpty
	}
	if strings.IndexFunc(input, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: id contains control characters", ErrInvalidID)
	}
	if strings.TrimSpace(input) != input {
		return "", fmt.Errorf("%w: id has surrounding whitespace", ErrInvalidID)
	}
	return input, nil
}

// Command normalizes a step command. Chat-style commands ("/step1") lose
// their slash and matching is case-insensitive. Unlike ids, commands are
// cleaned rather than rejected.
func Command(input string) (string, error) {
	if err := checkID(input); err != nil {
		return "", err
	}
	cmd := strings.TrimSpace(strip(input, func(rune) bool { return false }))
	cmd = strings.TrimSpace(strings.TrimPrefix(cmd, "/"))
	if cmd == "" {
		return "", ErrEmpty
	}
	return strings.ToLower(cmd), nil
}

func checkID(input string) error {
	if len(input) > MaxIDSize {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), MaxIDSize)
	}
	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}
	return nil
}

func strip(input string, keep func(rune) bool) string {
	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !keep(r) {
			clean = false
			break
		}
	}
	if clean {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
