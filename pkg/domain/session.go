package domain

import (
	"slices"
	"time"
)

// StepRecord captures what the first visit to a step produced.
// Replays of a completed step are served from it verbatim.
type StepRecord struct {
	StepID      string            `json:"step_id"`
	Narrative   string            `json:"narrative"`
	SecureID    string            `json:"secure_id,omitempty"`
	DisplayID   string            `json:"display_id,omitempty"`
	RiskFlag    RiskVerdict       `json:"risk_flag,omitempty"`
	Integrity   float64           `json:"integrity,omitempty"`
	SyncSeed    string            `json:"sync_seed,omitempty"`
	Tokens      map[string]string `json:"tokens,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Session represents the onboarding progress of a single platform user.
type Session struct {
	// PlatformUserID is the opaque identifier supplied by the transport.
	PlatformUserID string `json:"platform_user_id"`

	// SecureID is derived by the Identity Anchor once and cached.
	SecureID string `json:"secure_id,omitempty"`

	// CurrentStep is the id of the step the user is on.
	CurrentStep string `json:"current_step"`

	// RiskFlag is the last computed verdict for the current step.
	RiskFlag RiskVerdict `json:"risk_flag"`

	// CompletedSteps is an ordered set of completed step ids.
	CompletedSteps []string `json:"completed_steps"`

	// Records holds the recorded output of every completed step.
	Records map[string]StepRecord `json:"records"`

	// Version is incremented on every successful persist.
	Version int64 `json:"version"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Sealed carries the encrypted session when persisted through the
	// encryption middleware. Plain sessions leave it empty.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewSession creates a clean session positioned at the given first step.
func NewSession(platformUserID, firstStep string, now time.Time) *Session {
	return &Session{
		PlatformUserID: platformUserID,
		CurrentStep:    firstStep,
		RiskFlag:       RiskUnknown,
		CompletedSteps: []string{},
		Records:        make(map[string]StepRecord),
		CreatedAt:      now,
		LastUpdated:    now,
	}
}

// IsCompleted reports whether the step has already been executed.
func (s *Session) IsCompleted(stepID string) bool {
	return slices.Contains(s.CompletedSteps, stepID)
}

// MarkCompleted records the step as completed. It is a no-op for steps
// already in the set.
func (s *Session) MarkCompleted(record StepRecord) {
	if s.Records == nil {
		s.Records = make(map[string]StepRecord)
	}
	if !s.IsCompleted(record.StepID) {
		s.CompletedSteps = append(s.CompletedSteps, record.StepID)
	}
	s.Records[record.StepID] = record
}

// Snapshot returns a deep copy of the session, safe to mutate independently.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.CompletedSteps = slices.Clone(s.CompletedSteps)
	next.Sealed = slices.Clone(s.Sealed)
	if next.CompletedSteps == nil {
		next.CompletedSteps = []string{}
	}
	next.Records = make(map[string]StepRecord, len(s.Records))
	for k, v := range s.Records {
		if v.Tokens != nil {
			tokens := make(map[string]string, len(v.Tokens))
			for tk, tv := range v.Tokens {
				tokens[tk] = tv
			}
			v.Tokens = tokens
		}
		next.Records[k] = v
	}
	return &next
}
