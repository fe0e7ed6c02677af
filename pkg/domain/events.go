package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepCompleted  EventType = "step_completed"
	EventReplay         EventType = "replay"
	EventIdentityIssued EventType = "identity_issued"
	EventRiskAssessed   EventType = "risk_assessed"
	EventRejected       EventType = "rejected"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
}

// StepEvent represents the completion or replay of a step.
type StepEvent struct {
	EventBase
	StepID string `json:"step_id"`
}

// IdentityEvent is emitted when a step issues the user's secure identifier.
type IdentityEvent struct {
	EventBase
	StepID    string `json:"step_id"`
	DisplayID string `json:"display_id"`
}

// RiskEvent is emitted when the Risk Assessor produced a verdict for a first visit.
type RiskEvent struct {
	EventBase
	StepID     string     `json:"step_id"`
	Assessment Assessment `json:"assessment"`
}

// RejectionEvent is emitted when an Advance call fails with a user-facing condition.
type RejectionEvent struct {
	EventBase
	StepID string `json:"step_id"`
	Reason error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepCompleted  func(context.Context, *StepEvent)
	OnReplay         func(context.Context, *StepEvent)
	OnIdentityIssued func(context.Context, *IdentityEvent)
	OnRiskAssessed   func(context.Context, *RiskEvent)
	OnRejected       func(context.Context, *RejectionEvent)
}

// ComposeHooks merges several hook sets; each callback runs in argument order.
func ComposeHooks(sets ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range sets {
		out.OnStepCompleted = chain(out.OnStepCompleted, h.OnStepCompleted)
		out.OnReplay = chain(out.OnReplay, h.OnReplay)
		out.OnIdentityIssued = chain(out.OnIdentityIssued, h.OnIdentityIssued)
		out.OnRiskAssessed = chain(out.OnRiskAssessed, h.OnRiskAssessed)
		out.OnRejected = chain(out.OnRejected, h.OnRejected)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
