package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/internal/sanitize"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/identity"
	"github.com/aretw0/onramp/pkg/registry"
	"github.com/aretw0/onramp/pkg/risk"
	"github.com/aretw0/onramp/pkg/session"
)

// Engine is the step protocol state machine.
// It is safe for concurrent use; calls for the same user are serialized by the session manager.
type Engine struct {
	registry *registry.Registry
	anchor   *identity.Anchor
	assessor *risk.Assessor
	sessions *session.Manager

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(reg *registry.Registry, anchor *identity.Anchor, assessor *risk.Assessor, sessions *session.Manager, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		anchor:   anchor,
		assessor: assessor,
		sessions: sessions,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// outcome collects what an Advance call did, so hooks fire only once the
// session is committed.
type outcome struct {
	payload    *domain.ResponsePayload
	changed    bool
	replay     bool
	stepID     string
	issued     bool
	assessment *domain.Assessment
}

// Advance executes a step command (a step id or domain.CommandNext) for the user.
//
// User-facing failures (unknown or locked step) return both a payload that
// explains the condition and an error. Any other error leaves the stored
// session untouched.
func (e *Engine) Advance(ctx context.Context, platformUserID, command string) (*domain.ResponsePayload, error) {
	userID, err := sanitize.ID(platformUserID)
	if err != nil {
		return nil, fmt.Errorf("platform user id: %w", err)
	}
	command, err = sanitize.Command(command)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}

	var out outcome
	_, err = e.sessions.Update(ctx, userID,
		func() *domain.Session {
			return domain.NewSession(userID, e.registry.First().ID, e.now())
		},
		func(s *domain.Session, _ bool) (bool, error) {
			var err error
			out, err = e.apply(s, command)
			return out.changed, err
		},
	)
	if err != nil {
		if domain.IsUserFacing(err) {
			e.logger.Info("Step command rejected", "user_id", userID, "command", command, "reason", err)
			if e.hooks.OnRejected != nil {
				stepID := command
				if out.payload != nil && out.payload.StepID != "" {
					stepID = out.payload.StepID
				}
				e.hooks.OnRejected(ctx, &domain.RejectionEvent{
					EventBase: e.event(domain.EventRejected, userID),
					StepID:    stepID,
					Reason:    err,
				})
			}
			return out.payload, err
		}
		e.logger.Error("Step command failed", "user_id", userID, "command", command, "err", err)
		return nil, err
	}

	e.emit(ctx, userID, out)
	return out.payload, nil
}

// apply runs the state machine on a working copy of the session.
func (e *Engine) apply(s *domain.Session, command string) (outcome, error) {
	if s.SecureID == "" {
		secureID, err := e.anchor.Derive(s.PlatformUserID)
		if err != nil {
			return outcome{}, err
		}
		s.SecureID = secureID
	}

	target, terminal, err := e.resolve(s, command)
	if err != nil {
		return outcome{payload: e.rejection(s, err)}, err
	}
	if terminal {
		return outcome{payload: e.terminal(s)}, nil
	}

	if req := target.RequiresPriorStep; req != "" && !s.IsCompleted(req) {
		err := &domain.StepLockedError{StepID: target.ID, Required: req}
		return outcome{payload: e.rejection(s, err)}, err
	}

	if s.IsCompleted(target.ID) {
		return outcome{
			payload: e.payload(s, target, s.Records[target.ID], true),
			replay:  true,
			stepID:  target.ID,
		}, nil
	}

	record, assessment, err := e.execute(s, target)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		payload:    e.payload(s, target, record, false),
		changed:    true,
		stepID:     target.ID,
		issued:     target.TriggersIdentityIssuance,
		assessment: assessment,
	}, nil
}

// resolve maps a command to a step. For "next" it is the current step while
// uncompleted, then the one after it; past the last step it reports terminal.
func (e *Engine) resolve(s *domain.Session, command string) (domain.StepDefinition, bool, error) {
	if command != domain.CommandNext {
		step, err := e.registry.Lookup(command)
		return step, false, err
	}

	id, ok := e.nextStepID(s)
	if !ok {
		return domain.StepDefinition{}, true, nil
	}
	step, err := e.registry.Lookup(id)
	return step, false, err
}

// nextStepID is the step "next" would target, or false once the session is done.
func (e *Engine) nextStepID(s *domain.Session) (string, bool) {
	if e.registry.Position(s.CurrentStep) < 0 {
		// The protocol changed under the session; pick the first open step.
		for _, step := range e.registry.StepsInOrder() {
			if !s.IsCompleted(step.ID) {
				return step.ID, true
			}
		}
		return "", false
	}
	if !s.IsCompleted(s.CurrentStep) {
		return s.CurrentStep, true
	}
	next, ok := e.registry.Next(s.CurrentStep)
	if !ok {
		return "", false
	}
	return next.ID, true
}

// execute performs the first visit of target and records it on the session.
func (e *Engine) execute(s *domain.Session, target domain.StepDefinition) (domain.StepRecord, *domain.Assessment, error) {
	now := e.now()
	record := domain.StepRecord{
		StepID:      target.ID,
		RiskFlag:    s.RiskFlag,
		Tokens:      identity.Tokens(s.SecureID, target.Tokens),
		CompletedAt: now,
	}
	// Only issuing steps carry the secure id in their output.
	if target.TriggersIdentityIssuance {
		record.SecureID = s.SecureID
		record.DisplayID = identity.Display(s.SecureID)
	}

	var assessment *domain.Assessment
	if target.TriggersRiskAssessment {
		a := e.assessor.Assess(s.SecureID, target)
		assessment = &a
		record.RiskFlag = a.Verdict
		record.Integrity = a.Integrity
		record.SyncSeed = a.SyncSeed
		s.RiskFlag = a.Verdict
	}

	narrative, err := e.render(s, target, record)
	if err != nil {
		return domain.StepRecord{}, nil, err
	}
	record.Narrative = narrative

	s.MarkCompleted(record)
	// Current step only moves forward.
	if e.registry.Position(target.ID) > e.registry.Position(s.CurrentStep) {
		s.CurrentStep = target.ID
	}
	s.Version++
	s.LastUpdated = now

	return record, assessment, nil
}

func (e *Engine) emit(ctx context.Context, userID string, out outcome) {
	if out.replay {
		e.logger.Debug("Step replayed", "user_id", userID, "step_id", out.stepID)
		if e.hooks.OnReplay != nil {
			e.hooks.OnReplay(ctx, &domain.StepEvent{EventBase: e.event(domain.EventReplay, userID), StepID: out.stepID})
		}
		return
	}
	if !out.changed {
		return
	}

	e.logger.Info("Step completed", "user_id", userID, "step_id", out.stepID, "display_id", out.payload.DisplayID)

	if out.issued && e.hooks.OnIdentityIssued != nil {
		e.hooks.OnIdentityIssued(ctx, &domain.IdentityEvent{
			EventBase: e.event(domain.EventIdentityIssued, userID),
			StepID:    out.stepID,
			DisplayID: out.payload.DisplayID,
		})
	}
	if out.assessment != nil && e.hooks.OnRiskAssessed != nil {
		e.hooks.OnRiskAssessed(ctx, &domain.RiskEvent{
			EventBase:  e.event(domain.EventRiskAssessed, userID),
			StepID:     out.stepID,
			Assessment: *out.assessment,
		})
	}
	if e.hooks.OnStepCompleted != nil {
		e.hooks.OnStepCompleted(ctx, &domain.StepEvent{EventBase: e.event(domain.EventStepCompleted, userID), StepID: out.stepID})
	}
}

func (e *Engine) event(t domain.EventType, userID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, UserID: userID}
}

// Reset deletes the user's session so the protocol starts over.
func (e *Engine) Reset(ctx context.Context, platformUserID string) error {
	userID, err := sanitize.ID(platformUserID)
	if err != nil {
		return fmt.Errorf("platform user id: %w", err)
	}
	if err := e.sessions.Delete(ctx, userID); err != nil {
		return err
	}
	e.logger.Info("Session reset", "user_id", userID)
	return nil
}

// Session returns a read-only snapshot of the user's session.
func (e *Engine) Session(ctx context.Context, platformUserID string) (*domain.Session, error) {
	userID, err := sanitize.ID(platformUserID)
	if err != nil {
		return nil, fmt.Errorf("platform user id: %w", err)
	}
	return e.sessions.Load(ctx, userID)
}

// Sessions lists the users with a stored session.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Steps returns the protocol in order.
func (e *Engine) Steps() []domain.StepDefinition {
	return e.registry.StepsInOrder()
}
