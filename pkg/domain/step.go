package domain

// CommandNext is the sentinel command that advances to the next reachable step.
const CommandNext = "next"

// StepDefinition is one immutable unit of the onboarding protocol.
type StepDefinition struct {
	// ID is the stable identifier used in commands and persisted sessions.
	ID string `json:"id" yaml:"id"`

	// Order is the position of the step in the protocol's total order.
	Order int `json:"order" yaml:"order"`

	// Title is a short human readable label.
	Title string `json:"title" yaml:"title"`

	// RequiresPriorStep names the step that must be completed before this one is reachable.
	RequiresPriorStep string `json:"requires,omitempty" yaml:"requires"`

	// NarrativeTemplate is a text/template rendered with the step's output.
	NarrativeTemplate string `json:"narrative" yaml:"narrative"`

	// TriggersIdentityIssuance includes the secure identifier in the step's output.
	TriggersIdentityIssuance bool `json:"issues_identity" yaml:"issues_identity"`

	// TriggersRiskAssessment runs the Risk Assessor on first visit.
	TriggersRiskAssessment bool `json:"assesses_risk" yaml:"assesses_risk"`

	// Tokens lists prefixes of deterministic per-user tokens issued by this step (e.g. "SLT", "AKY").
	Tokens []string `json:"tokens,omitempty" yaml:"tokens"`
}

// RiskVerdict is the cosmetic status flag attached to a step's response.
type RiskVerdict string

const (
	RiskUnknown  RiskVerdict = "unknown"
	RiskNominal  RiskVerdict = "nominal"
	RiskElevated RiskVerdict = "elevated"
)

// Assessment is the output of the Risk Assessor for one secure id and step.
type Assessment struct {
	Verdict   RiskVerdict `json:"verdict"`
	Integrity float64     `json:"integrity"`
	SyncSeed  string      `json:"sync_seed"`
}
