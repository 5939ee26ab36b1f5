package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
)

// Subscription is a live, server-pushed feed of one responder's active
// alert set. Every emission carries the full current set of alerts that are
// still active and assigned to the responder.
type Subscription interface {
	// Updates yields the current set on every relevant change. The channel
	// is closed when the subscription terminates; Err then reports why.
	Updates() <-chan []*alert.Record
	// Err returns the terminal error after Updates is closed, or nil when
	// the subscription was closed deliberately.
	Err() error
	// Close releases the subscription. Safe to call more than once.
	Close()
}

// Store abstracts the persistent, subscribable record store behind the four
// operations the coordination core uses.
type Store interface {
	// Create persists a new alert. Status is forced to active; a missing id
	// and creation time are assigned. Returns the alert id.
	Create(ctx context.Context, record *alert.Record) (string, error)

	// Get returns the alert with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*alert.Record, error)

	// TryTransition atomically moves the alert from one status to another.
	// It succeeds, and returns accepted=true, only if the stored status
	// still equals from at the moment of the write; otherwise it returns
	// accepted=false and leaves the record untouched. RespondedBy and
	// RespondedAt are recorded together with an accepted transition.
	TryTransition(
		ctx context.Context,
		id string,
		from, to alert.Status,
		responderID string,
		at time.Time,
	) (accepted bool, err error)

	// SubscribeActiveFor opens a live subscription over "status == active
	// and responderID assigned". The subscription terminates with an error
	// on connectivity loss; the caller resubscribes.
	SubscribeActiveFor(ctx context.Context, responderID string) (Subscription, error)

	// Close releases the backend connection and terminates subscriptions.
	Close(ctx context.Context) error
}

var (
	// ErrNotFound is returned when no alert exists with the requested id.
	ErrNotFound = errors.New("alert not found")
	// ErrClosed is returned when the store has been shut down.
	ErrClosed = errors.New("alert store is closed")
	// ErrRecordRequired is returned when a nil record is passed to Create.
	ErrRecordRequired = errors.New("alert record must be provided")
	// ErrRespondersRequired is returned when a new alert has no assigned responders.
	ErrRespondersRequired = errors.New("at least one assigned responder is required")
	// ErrInvalidSeverity is returned when a new alert carries an unknown severity.
	ErrInvalidSeverity = errors.New("invalid alert severity")
	// ErrInvalidStatus is returned when a transition names an unknown status.
	ErrInvalidStatus = errors.New("invalid alert status")
)

// PrepareNew validates and normalises a record ahead of Create. It forces
// status to active, assigns an id and creation time when missing, and strips
// any response attribution. Backends call this so creation semantics stay
// identical across them.
func PrepareNew(record *alert.Record) error {
	if record == nil {
		return ErrRecordRequired
	}

	if !record.Severity.IsValid() {
		return fmt.Errorf("%q: %w", record.Severity, ErrInvalidSeverity)
	}

	record.AssignedResponders = alert.NormalizeResponders(record.AssignedResponders)
	if len(record.AssignedResponders) == 0 {
		return ErrRespondersRequired
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	record.Status = alert.StatusActive
	record.RespondedBy = ""
	record.RespondedAt = time.Time{}

	return nil
}

// CheckTransition validates the statuses named by a TryTransition call.
func CheckTransition(from, to alert.Status) error {
	if !from.IsValid() {
		return fmt.Errorf("from %q: %w", from, ErrInvalidStatus)
	}

	if !to.IsValid() {
		return fmt.Errorf("to %q: %w", to, ErrInvalidStatus)
	}

	return nil
}
