package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(userID, "step1", now)
		session.SecureID = "abc123"
		session.RiskFlag = domain.RiskElevated
		session.Version = 1
		session.MarkCompleted(domain.StepRecord{
			StepID:      "step1",
			Narrative:   "hello",
			SecureID:    "abc123",
			RiskFlag:    domain.RiskElevated,
			Integrity:   30.5,
			Tokens:      map[string]string{"SLT": "SLT-00000000"},
			CompletedAt: now,
		})

		err := store.Save(ctx, userID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, userID, loaded.PlatformUserID)
		assert.Equal(t, "abc123", loaded.SecureID)
		assert.Equal(t, "step1", loaded.CurrentStep)
		assert.Equal(t, domain.RiskElevated, loaded.RiskFlag)
		assert.Equal(t, []string{"step1"}, loaded.CompletedSteps)
		assert.Equal(t, int64(1), loaded.Version)
		require.Contains(t, loaded.Records, "step1")
		assert.Equal(t, "hello", loaded.Records["step1"].Narrative)
		assert.Equal(t, 30.5, loaded.Records["step1"].Integrity)
		assert.Equal(t, "SLT-00000000", loaded.Records["step1"].Tokens["SLT"])
		assert.True(t, now.Equal(loaded.Records["step1"].CompletedAt))
	})

	t.Run("Isolation", func(t *testing.T) {
		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)

		// Mutating a loaded copy must not leak into the store.
		loaded.CompletedSteps = append(loaded.CompletedSteps, "step2")
		loaded.CurrentStep = "step2"

		again, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "step1", again.CurrentStep)
		assert.Equal(t, []string{"step1"}, again.CompletedSteps)
	})

	t.Run("Overwrite", func(t *testing.T) {
		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)

		loaded.CurrentStep = "step2"
		loaded.Version++
		loaded.MarkCompleted(domain.StepRecord{StepID: "step2", CompletedAt: now})
		require.NoError(t, store.Save(ctx, userID, loaded))

		again, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "step2", again.CurrentStep)
		assert.Equal(t, []string{"step1", "step2"}, again.CompletedSteps)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		lister, ok := store.(Lister)
		if !ok {
			t.Skip("store does not implement Lister")
		}
		id1 := userID + "-1"
		id2 := userID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSession(id1, "step1", now)))
		require.NoError(t, store.Save(ctx, id2, domain.NewSession(id2, "step1", now)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := lister.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, userID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		// Deleting twice is not an error.
		assert.NoError(t, store.Delete(ctx, userID))
	})
}
