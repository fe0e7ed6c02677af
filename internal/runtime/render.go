package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/identity"
)

const terminalNarrative = "Protocol complete. All steps have been executed."

// narrativeData is exposed to step templates.
type narrativeData struct {
	UserID    string
	StepID    string
	Title     string
	SecureID  string
	DisplayID string
	RiskFlag  domain.RiskVerdict
	Integrity float64
	SyncSeed  string
	Tokens    map[string]string
}

// render executes the step's narrative template against the record. The
// template always sees the session identity, whether or not the step issues it.
func (e *Engine) render(s *domain.Session, step domain.StepDefinition, record domain.StepRecord) (string, error) {
	tmpl, ok := e.registry.Template(step.ID)
	if !ok {
		return "", fmt.Errorf("no narrative template for step %q", step.ID)
	}

	var b strings.Builder
	err := tmpl.Execute(&b, narrativeData{
		UserID:    s.PlatformUserID,
		StepID:    step.ID,
		Title:     step.Title,
		SecureID:  s.SecureID,
		DisplayID: identity.Display(s.SecureID),
		RiskFlag:  record.RiskFlag,
		Integrity: record.Integrity,
		SyncSeed:  record.SyncSeed,
		Tokens:    record.Tokens,
	})
	if err != nil {
		return "", fmt.Errorf("rendering narrative for step %q: %w", step.ID, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// payload builds the response for a completed or replayed step.
func (e *Engine) payload(s *domain.Session, step domain.StepDefinition, record domain.StepRecord, replay bool) *domain.ResponsePayload {
	hint, more := e.nextStepID(s)
	return &domain.ResponsePayload{
		UserID:       s.PlatformUserID,
		StepID:       step.ID,
		StepTitle:    step.Title,
		Narrative:    record.Narrative,
		CurrentStep:  s.CurrentStep,
		NextStepHint: hint,
		Terminal:     !more,
		Replay:       replay,
		SecureID:     record.SecureID,
		DisplayID:    record.DisplayID,
		RiskFlag:     record.RiskFlag,
		Integrity:    record.Integrity,
		SyncSeed:     record.SyncSeed,
		Tokens:       cloneTokens(record.Tokens),
	}
}

// terminal is returned for "next" once the last step is completed.
func (e *Engine) terminal(s *domain.Session) *domain.ResponsePayload {
	return &domain.ResponsePayload{
		UserID:      s.PlatformUserID,
		Narrative:   terminalNarrative,
		CurrentStep: s.CurrentStep,
		Terminal:    true,
		RiskFlag:    s.RiskFlag,
	}
}

// rejection explains a user-facing failure and names the valid next action.
func (e *Engine) rejection(s *domain.Session, err error) *domain.ResponsePayload {
	hint, more := e.nextStepID(s)
	p := &domain.ResponsePayload{
		UserID:       s.PlatformUserID,
		CurrentStep:  s.CurrentStep,
		NextStepHint: hint,
		Terminal:     !more,
		RiskFlag:     s.RiskFlag,
	}

	var locked *domain.StepLockedError
	var unknown *domain.UnknownStepError
	switch {
	case errors.As(err, &locked):
		p.StepID = locked.StepID
		p.RequiredStep = locked.Required
		p.Narrative = fmt.Sprintf("Step %s is locked. Complete %s first.", locked.StepID, locked.Required)
	case errors.As(err, &unknown):
		p.Narrative = fmt.Sprintf("Unknown step %q.", unknown.StepID)
	default:
		p.Narrative = err.Error()
	}
	if more {
		p.Narrative += fmt.Sprintf(" Send %q to continue.", hint)
	}
	return p
}

func cloneTokens(tokens map[string]string) map[string]string {
	if tokens == nil {
		return nil
	}
	out := make(map[string]string, len(tokens))
	for k, v := range tokens {
		out[k] = v
	}
	return out
}
