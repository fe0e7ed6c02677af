package domain_test

import (
	"context"
	"testing"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestComposeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnStepCompleted: func(context.Context, *domain.StepEvent) { calls = append(calls, "a") },
	}
	b := domain.LifecycleHooks{
		OnStepCompleted: func(context.Context, *domain.StepEvent) { calls = append(calls, "b") },
		OnReplay:        func(context.Context, *domain.StepEvent) { calls = append(calls, "b-replay") },
	}

	h := domain.ComposeHooks(a, domain.LifecycleHooks{}, b)
	h.OnStepCompleted(context.Background(), &domain.StepEvent{})
	h.OnReplay(context.Background(), &domain.StepEvent{})

	assert.Equal(t, []string{"a", "b", "b-replay"}, calls)
	assert.Nil(t, h.OnRejected)
}
