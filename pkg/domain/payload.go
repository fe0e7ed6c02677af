package domain

// ResponsePayload is what the transport renders after an Advance call.
type ResponsePayload struct {
	UserID    string `json:"user_id"`
	StepID    string `json:"step_id,omitempty"`
	StepTitle string `json:"step_title,omitempty"`

	// Narrative is the rendered text for the user.
	Narrative string `json:"narrative"`

	// CurrentStep is the session's step after the call.
	CurrentStep string `json:"current_step"`

	// NextStepHint is the command that makes progress from here.
	// Empty when Terminal is true.
	NextStepHint string `json:"next_step_hint,omitempty"`

	// Terminal is set once the last step of the protocol is completed.
	Terminal bool `json:"terminal"`

	// Replay is set when the payload re-serves a completed step's recorded output.
	Replay bool `json:"replay"`

	// RequiredStep is set when the requested step is locked.
	RequiredStep string `json:"required_step,omitempty"`

	SecureID  string            `json:"secure_id,omitempty"`
	DisplayID string            `json:"display_id,omitempty"`
	RiskFlag  RiskVerdict       `json:"risk_flag,omitempty"`
	Integrity float64           `json:"integrity,omitempty"`
	SyncSeed  string            `json:"sync_seed,omitempty"`
	Tokens    map[string]string `json:"tokens,omitempty"`
}
