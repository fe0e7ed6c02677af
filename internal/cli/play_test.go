package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/onramp"
	"github.com/aretw0/onramp/internal/inbox"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, eng PlayEngine, input string, sub Submitter) string {
	t.Helper()
	var out bytes.Buffer
	err := Play(context.Background(), eng, PlayOptions{
		UserID: "cli-user",
		In:     strings.NewReader(input),
		Out:    &out,
		Inbox:  sub,
	})
	require.NoError(t, err)
	return out.String()
}

func newEngine(t *testing.T) *onramp.Engine {
	t.Helper()
	eng, err := onramp.New("cli-test-salt")
	require.NoError(t, err)
	return eng
}

func TestPlay_FullProtocol(t *testing.T) {
	eng := newEngine(t)

	out := play(t, eng, "next\n/step2\nstep3\nnext\nexit\n", nil)

	assert.Contains(t, out, "USR-")
	assert.Contains(t, out, "[SLOT ID]")
	assert.Contains(t, out, "All steps completed.")
	assert.Contains(t, out, "Bye!")

	s, err := eng.Session(context.Background(), "cli-user")
	require.NoError(t, err)
	assert.Equal(t, []string{"step1", "step2", "step3"}, s.CompletedSteps)
}

func TestPlay_LockedAndReplay(t *testing.T) {
	out := play(t, newEngine(t), "step3\nnext\nstep1\n", nil)

	assert.Contains(t, out, "Step step3 is locked. Complete step2 first.")
	assert.Contains(t, out, "Step 'step1' was already completed")
}

func TestPlay_StartResets(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	_, err := eng.Advance(ctx, "cli-user", "next")
	require.NoError(t, err)
	_, err = eng.Advance(ctx, "cli-user", "next")
	require.NoError(t, err)

	out := play(t, eng, "/start\n", nil)
	assert.Contains(t, out, "Progress cleared.")

	s, err := eng.Session(ctx, "cli-user")
	require.NoError(t, err)
	assert.Equal(t, []string{"step1"}, s.CompletedSteps)
}

func TestPlay_Status(t *testing.T) {
	out := play(t, newEngine(t), "/status\nnext\n/status\n", nil)

	assert.Contains(t, out, "No progress yet.")
	assert.Contains(t, out, "[x] step1")
	assert.Contains(t, out, "[ ] step2")
	assert.Contains(t, out, "Current step: step2")
}

func TestPlay_Help(t *testing.T) {
	out := play(t, newEngine(t), "/help\n", nil)
	assert.Contains(t, out, "step2")
	assert.Contains(t, out, CommandStart)
}

func TestPlay_FreeText(t *testing.T) {
	t.Run("Without Inbox", func(t *testing.T) {
		out := play(t, newEngine(t), "hello there\n", nil)
		assert.Contains(t, out, `Unknown command "hello there"`)
	})

	t.Run("With Inbox", func(t *testing.T) {
		var journal bytes.Buffer
		ib := inbox.New(&journal)

		out := play(t, newEngine(t), "hello there\nI am stuck\n", ib)

		assert.Contains(t, out, "Message received.")
		assert.Contains(t, out, "An operator has been notified.")
		assert.Contains(t, journal.String(), "hello there")
		assert.Contains(t, journal.String(), "cli-user")
	})
}

type failingEngine struct{ PlayEngine }

func (failingEngine) Advance(context.Context, string, string) (*domain.ResponsePayload, error) {
	return nil, fmt.Errorf("%w: disk full", domain.ErrStorageUnavailable)
}

func TestPlay_StorageErrorEndsSession(t *testing.T) {
	eng := failingEngine{PlayEngine: newEngine(t)}
	var out bytes.Buffer

	err := Play(context.Background(), eng, PlayOptions{
		UserID: "cli-user",
		In:     strings.NewReader("next\nnext\n"),
		Out:    &out,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
}

func TestPlay_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns would block forever without cancellation.
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	var out bytes.Buffer
	err := Play(ctx, newEngine(t), PlayOptions{UserID: "cli-user", In: r, Out: &out})
	assert.NoError(t, err)
}
