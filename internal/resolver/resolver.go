package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/metrics"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// Outcome reports who settled the alert.
type Outcome string

const (
	// OutcomeWon means this responder's decision is the durable outcome.
	OutcomeWon Outcome = "won"
	// OutcomeLost means another responder's write landed first. The caller
	// drops the alert from the local view and shows no error: from this
	// responder's point of view the emergency was simply handled.
	OutcomeLost Outcome = "lost"
)

var (
	// ErrOutcomeUnknown is returned when the conditional write timed out
	// and the reconciling read could not settle what happened. The caller
	// must not blindly retry: the first write may have been accepted
	// server-side.
	ErrOutcomeUnknown = errors.New("response outcome unknown, reconcile before retrying")
	// ErrInvalidDecision is returned for an unrecognised decision value.
	ErrInvalidDecision = errors.New("invalid decision")
	// errAlertRequired is returned when no alert is provided.
	errAlertRequired = errors.New("alert must be provided")
	// errResponderRequired is returned when no responder id is provided.
	errResponderRequired = errors.New("responder id must be provided")
)

// Resolver executes responder decisions against the store.
type Resolver struct {
	// store performs the conditional writes.
	store store.Store
	// now is the clock, swappable in tests.
	now func() time.Time
}

// New creates a resolver over the given store.
func New(s store.Store) *Resolver {
	return &Resolver{
		store: s,
		now:   time.Now,
	}
}

// Respond executes a responder's decision as a single conditional write.
// Exactly one concurrent Respond per alert returns OutcomeWon; every other
// one returns OutcomeLost, deterministically so once the alert is terminal.
// A lost outcome is final for this call: the caller must not re-invoke
// Respond for the same alert and decision.
func (r *Resolver) Respond(
	ctx context.Context,
	record *alert.Record,
	decision alert.Decision,
	responderID string,
) (Outcome, error) {
	if record == nil {
		return OutcomeLost, errAlertRequired
	}

	if responderID == "" {
		return OutcomeLost, errResponderRequired
	}

	if !decision.IsValid() {
		return OutcomeLost, fmt.Errorf("%q: %w", decision, ErrInvalidDecision)
	}

	accepted, err := r.store.TryTransition(
		ctx,
		record.ID,
		alert.StatusActive,
		decision.TargetStatus(),
		responderID,
		r.now().UTC(),
	)

	switch {
	case err == nil:
		outcome := OutcomeLost
		if accepted {
			outcome = OutcomeWon
		}

		metrics.Responses.WithLabelValues(string(decision), string(outcome)).Inc()
		logger.InfoKV(ctx, "Alert response settled",
			"alert_id", record.ID, "responder_id", responderID,
			"decision", decision, "outcome", outcome)

		return outcome, nil
	case errors.Is(err, context.DeadlineExceeded):
		// Ambiguous: the write may have landed server-side. Reconcile with
		// a fresh read, never with a retry of the write.
		return r.reconcile(ctx, record.ID, responderID)
	default:
		return OutcomeLost, fmt.Errorf("respond to alert %s: %w", record.ID, err)
	}
}

// reconcile settles a timed-out conditional write by re-reading the record.
func (r *Resolver) reconcile(ctx context.Context, alertID, responderID string) (Outcome, error) {
	logger.WarnKV(ctx, "Response write timed out, reconciling",
		"alert_id", alertID, "responder_id", responderID)

	// The write deadline may already be spent; the reconciling read must
	// still go out. The store bounds it with its own operation timeout.
	current, err := r.store.Get(context.WithoutCancel(ctx), alertID)
	if err != nil {
		return OutcomeLost, fmt.Errorf("reconcile alert %s: %w: %w", alertID, ErrOutcomeUnknown, err)
	}

	switch {
	case current.Status == alert.StatusActive:
		// The timed-out write did not land. Still active, but this call's
		// outcome stays unknown: the caller decides whether to try again.
		return OutcomeLost, fmt.Errorf("alert %s still active: %w", alertID, ErrOutcomeUnknown)
	case current.RespondedBy == responderID:
		// The write landed after all.
		return OutcomeWon, nil
	default:
		return OutcomeLost, nil
	}
}
