package alert

import (
	"slices"
	"strings"
	"time"
)

// Record represents one emergency alert, the unit of coordination between
// all responders it is assigned to. Every field except Status, RespondedBy
// and RespondedAt is immutable after creation.
type Record struct {
	// ID is the opaque unique identifier assigned at creation.
	ID string `json:"id" bson:"_id" yaml:"id"`
	// PatientID identifies who raised the alert.
	PatientID string `json:"patient_id" bson:"patient_id" yaml:"patient_id"`
	// PatientName is shown to responders alongside the alert.
	PatientName string `json:"patient_name" bson:"patient_name" yaml:"patient_name"`
	// PatientPhone lets a responder call the patient directly.
	PatientPhone string `json:"patient_phone" bson:"patient_phone" yaml:"patient_phone"`
	// Location is optional free text or a geocoordinate string.
	Location string `json:"location,omitempty" bson:"location,omitempty" yaml:"location,omitempty"`
	// Severity tags the alert for presentation priority and escalation tone.
	Severity Severity `json:"severity" bson:"severity" yaml:"severity"`
	// Symptoms lists observations captured when the alert was raised.
	Symptoms []string `json:"symptoms,omitempty" bson:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	// Notes is free text captured when the alert was raised.
	Notes string `json:"notes,omitempty" bson:"notes,omitempty" yaml:"notes,omitempty"`
	// CreatedAt orders alerts oldest-first within a severity.
	CreatedAt time.Time `json:"created_at" bson:"created_at" yaml:"created_at"`
	// Status is the only mutable field, see the Status type.
	Status Status `json:"status" bson:"status" yaml:"status"`
	// AssignedResponders lists responder identifiers this alert is routed to.
	AssignedResponders []string `json:"assigned_responders" bson:"assigned_responders" yaml:"assigned_responders"`
	// RespondedBy is the responder whose transition out of active was
	// accepted by the store. Empty while the alert is active.
	RespondedBy string `json:"responded_by,omitempty" bson:"responded_by,omitempty" yaml:"responded_by,omitempty"`
	// RespondedAt is when the accepted transition happened.
	// Zero while the alert is active.
	RespondedAt time.Time `json:"responded_at,omitempty" bson:"responded_at,omitempty" yaml:"responded_at,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Symptoms = slices.Clone(r.Symptoms)
	cloned.AssignedResponders = slices.Clone(r.AssignedResponders)

	return &cloned
}

// IsAssignedTo reports whether the record is routed to the given responder.
func (r *Record) IsAssignedTo(responderID string) bool {
	return slices.Contains(r.AssignedResponders, responderID)
}

// Less orders records for responder display: higher severity first,
// then oldest first, with the id as a stable final tie-break.
func Less(a, b *Record) bool {
	if a.Severity.Rank() != b.Severity.Rank() {
		return a.Severity.Rank() > b.Severity.Rank()
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}

	return a.ID < b.ID
}

// Sort orders a slice of records in display order, in place.
func Sort(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		default:
			return 0
		}
	})
}

// CloneAll returns a deep copy of a record slice.
func CloneAll(records []*Record) []*Record {
	if records == nil {
		return nil
	}

	cloned := make([]*Record, len(records))
	for i, r := range records {
		cloned[i] = r.Clone()
	}

	return cloned
}

// SameView reports whether two emissions describe the same responder view.
// Only record identity and status matter here: responder views re-render on
// membership or status changes, nothing else about an alert can change.
func SameView(a, b []*Record) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].ID != b[i].ID || a[i].Status != b[i].Status {
			return false
		}
	}

	return true
}

// NormalizeResponders trims and deduplicates responder identifiers,
// preserving first-seen order.
func NormalizeResponders(responders []string) []string {
	seen := make(map[string]struct{}, len(responders))
	result := make([]string, 0, len(responders))

	for _, id := range responders {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}

		result = append(result, id)
	}

	return result
}
