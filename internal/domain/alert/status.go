package alert

// Severity tags an alert with presentation priority and escalation tone.
type Severity string

const (
	// SeverityMedical marks a routine medical emergency.
	SeverityMedical Severity = "medical"
	// SeverityUrgent marks an emergency that needs prompt attention.
	SeverityUrgent Severity = "urgent"
	// SeverityCritical marks a life-threatening emergency.
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for display, higher demands attention first.
var severityRank = map[Severity]int{
	SeverityMedical:  1,
	SeverityUrgent:   2,
	SeverityCritical: 3,
}

// Rank returns the numeric display priority of the severity.
// Unknown severities rank below every known one.
func (s Severity) Rank() int {
	return severityRank[s]
}

// IsValid reports whether the severity is one of the known values.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]

	return ok
}

// Status is the only mutable field of a Record and the subject of the
// coordination protocol.
type Status string

const (
	// StatusActive is the sole initial state of every alert.
	StatusActive Status = "active"
	// StatusAcknowledged records that a responder took the emergency.
	StatusAcknowledged Status = "acknowledged"
	// StatusResolved records that a responder dismissed the emergency.
	StatusResolved Status = "resolved"
)

// IsValid reports whether the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is defined from the status.
// Once a record leaves StatusActive it stays put.
func (s Status) IsTerminal() bool {
	return s == StatusAcknowledged || s == StatusResolved
}

// Decision is a responder's choice when acting on an active alert.
type Decision string

const (
	// DecisionAcknowledge claims the emergency for the acting responder.
	DecisionAcknowledge Decision = "acknowledge"
	// DecisionDismiss closes the emergency without claiming it.
	DecisionDismiss Decision = "dismiss"
)

// IsValid reports whether the decision is one of the known values.
func (d Decision) IsValid() bool {
	return d == DecisionAcknowledge || d == DecisionDismiss
}

// TargetStatus returns the terminal status a decision drives the alert to.
func (d Decision) TargetStatus() Status {
	if d == DecisionAcknowledge {
		return StatusAcknowledged
	}

	return StatusResolved
}
