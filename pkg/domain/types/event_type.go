package types

// EventType identifies a lifecycle event recorded on an issue
type EventType string

const (
	EventTypeCreated                EventType = "created"
	EventTypeClassified             EventType = "classified"
	EventTypeClarificationRequested EventType = "clarification_requested"
	EventTypeFollowUpSubmitted      EventType = "followup_submitted"
	EventTypeTriageDegraded         EventType = "triage_degraded"
	EventTypeTriageForced           EventType = "triage_forced"
	EventTypeTriageClosed           EventType = "triage_closed"
	EventTypeStatusChanged          EventType = "status_changed"
)

// IsValid checks if the event type is known
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeCreated,
		EventTypeClassified,
		EventTypeClarificationRequested,
		EventTypeFollowUpSubmitted,
		EventTypeTriageDegraded,
		EventTypeTriageForced,
		EventTypeTriageClosed,
		EventTypeStatusChanged:
		return true
	default:
		return false
	}
}

func (e EventType) String() string {
	return string(e)
}
