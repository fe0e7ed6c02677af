package sanitize

import (
	"strings"
	"testing"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_SizeLimit(t *testing.T) {
	limit := 4096

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Text(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestText_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "8")

	_, err := Text("123456789")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = Text("12345678")
	assert.NoError(t, err)
}

func TestText_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	_, err := Text("bad \xff byte")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestID(t *testing.T) {
	for _, ok := range []string{"42", "user-7", "Ana Souza", "ünïcode"} {
		got, err := ID(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, ok, got)
	}

	for _, bad := range []string{" u1\x07", "u1 ", "\tu1", "user\x00-7", "u1\n", "\x1b[31mu1"} {
		_, err := ID(bad)
		assert.ErrorIs(t, err, ErrInvalidID, "input %q", bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %q", bad)
	}

	for _, bad := range []string{"", "   ", "\n\t", strings.Repeat("x", MaxIDSize+1), "bad \xff"} {
		_, err := ID(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %q", bad)
	}
}

func TestCommand(t *testing.T) {
	tests := map[string]string{
		"next":     "next",
		" NEXT ":   "next",
		"/step1":   "step1",
		"Step2":    "step2",
		"/ step3 ": "step3",
		"next\r\n": "next",
		"step1\x07": "step1",
	}
	for in, want := range tests {
		got, err := Command(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Command("/")
	assert.ErrorIs(t, err, ErrEmpty)
}
