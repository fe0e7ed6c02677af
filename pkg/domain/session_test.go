package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestSession_MarkCompleted(t *testing.T) {
	s := domain.NewSession("u1", "step1", time.Now())
	assert.False(t, s.IsCompleted("step1"))

	s.MarkCompleted(domain.StepRecord{StepID: "step1", Narrative: "first"})
	s.MarkCompleted(domain.StepRecord{StepID: "step1", Narrative: "second"})

	assert.True(t, s.IsCompleted("step1"))
	assert.Equal(t, []string{"step1"}, s.CompletedSteps)
	assert.Equal(t, "second", s.Records["step1"].Narrative)
}

func TestSession_SnapshotIsDeep(t *testing.T) {
	s := domain.NewSession("u1", "step1", time.Now())
	s.MarkCompleted(domain.StepRecord{StepID: "step1", Tokens: map[string]string{"SLT": "SLT-1"}})

	c := s.Snapshot()
	c.CompletedSteps[0] = "x"
	c.Records["step1"].Tokens["SLT"] = "changed"
	c.Records["step2"] = domain.StepRecord{}

	assert.Equal(t, []string{"step1"}, s.CompletedSteps)
	assert.Equal(t, "SLT-1", s.Records["step1"].Tokens["SLT"])
	assert.NotContains(t, s.Records, "step2")

	var nilSession *domain.Session
	assert.Nil(t, nilSession.Snapshot())
}

func TestErrors(t *testing.T) {
	locked := fmt.Errorf("advance: %w", &domain.StepLockedError{StepID: "step2", Required: "step1"})
	assert.ErrorIs(t, locked, domain.ErrStepLocked)
	assert.True(t, domain.IsUserFacing(locked))

	unknown := &domain.UnknownStepError{StepID: "x"}
	assert.ErrorIs(t, unknown, domain.ErrUnknownStep)
	assert.NotErrorIs(t, unknown, domain.ErrStepLocked)
	assert.Contains(t, unknown.Error(), `"x"`)

	assert.True(t, domain.IsUserFacing(domain.ErrInvalidInput))
	assert.False(t, domain.IsUserFacing(domain.ErrStorageUnavailable))
	assert.False(t, domain.IsUserFacing(errors.New("other")))
}
