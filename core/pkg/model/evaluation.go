package model

// TargetingContext identifies who a flag is evaluated for.
type TargetingContext struct {
	UserID string   `json:"user_id"`
	Groups []string `json:"groups"`
}

// Variant is the resolved variant handed back to callers.
type Variant struct {
	Name          string `json:"name"`
	Configuration any    `json:"configuration"`
}

type AssignmentReason string

const (
	ReasonNone                AssignmentReason = "None"
	ReasonDefaultWhenDisabled AssignmentReason = "DefaultWhenDisabled"
	ReasonDefaultWhenEnabled  AssignmentReason = "DefaultWhenEnabled"
	ReasonUser                AssignmentReason = "User"
	ReasonGroup               AssignmentReason = "Group"
	ReasonPercentile          AssignmentReason = "Percentile"
)

// EvaluationEvent accumulates the outcome of one IsEnabled/GetVariant call.
// Flag is nil when the requested id is not present in the configuration.
type EvaluationEvent struct {
	Flag    *FlagDefinition  `json:"-"`
	FlagID  string           `json:"flag"`
	User    string           `json:"user,omitempty"`
	Enabled bool             `json:"enabled"`
	Variant *Variant         `json:"variant,omitempty"`
	Reason  AssignmentReason `json:"reason"`
}

func NewEvaluationEvent(id string, flag *FlagDefinition) *EvaluationEvent {
	return &EvaluationEvent{
		Flag:   flag,
		FlagID: id,
		Reason: ReasonNone,
	}
}
