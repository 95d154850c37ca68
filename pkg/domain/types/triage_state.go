package types

// TriageState is the discriminator of the triage workflow stage of an issue
type TriageState string

const (
	TriageStateCreated               TriageState = "created"
	TriageStateClassifying           TriageState = "classifying"
	TriageStateAwaitingClarification TriageState = "awaiting_clarification"
	TriageStateTriaged               TriageState = "triaged"
)

// IsValid checks if the triage state is valid
func (s TriageState) IsValid() bool {
	switch s {
	case TriageStateCreated,
		TriageStateClassifying,
		TriageStateAwaitingClarification,
		TriageStateTriaged:
		return true
	default:
		return false
	}
}

func (s TriageState) String() string {
	return string(s)
}

// TriageOutcome records how an issue reached the triaged stage
type TriageOutcome string

const (
	// TriageOutcomeClassified means the classifier produced the final result
	TriageOutcomeClassified TriageOutcome = "classified"
	// TriageOutcomeDegraded means the classifier failed or timed out
	TriageOutcomeDegraded TriageOutcome = "degraded"
	// TriageOutcomeForced means the clarification round bound was reached
	TriageOutcomeForced TriageOutcome = "forced"
	// TriageOutcomeClosed means an administrator resolved the issue mid-clarification
	TriageOutcomeClosed TriageOutcome = "closed"
)

// IsValid checks if the triage outcome is valid
func (o TriageOutcome) IsValid() bool {
	switch o {
	case TriageOutcomeClassified,
		TriageOutcomeDegraded,
		TriageOutcomeForced,
		TriageOutcomeClosed:
		return true
	default:
		return false
	}
}

func (o TriageOutcome) String() string {
	return string(o)
}
