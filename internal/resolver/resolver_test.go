package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/store"
	"github.com/clinicport/emergency-alerts/internal/store/memory"
)

// newActiveAlert creates an alert in the given store and returns it.
func newActiveAlert(t *testing.T, s store.Store, responders ...string) *alert.Record {
	t.Helper()

	id, err := s.Create(context.Background(), &alert.Record{
		PatientID:          "p1",
		PatientName:        "Anna Petrova",
		PatientPhone:       "+7 900 000-00-00",
		Severity:           alert.SeverityCritical,
		AssignedResponders: responders,
	})
	require.NoError(t, err)

	record, err := s.Get(context.Background(), id)
	require.NoError(t, err)

	return record
}

// TestRespond_Validation covers argument checking.
func TestRespond_Validation(t *testing.T) {
	t.Parallel()

	r := New(memory.NewStore())
	ctx := context.Background()

	_, err := r.Respond(ctx, nil, alert.DecisionAcknowledge, "d1")
	require.Error(t, err)

	record := &alert.Record{ID: "a1"}

	_, err = r.Respond(ctx, record, alert.DecisionAcknowledge, "")
	require.Error(t, err)

	_, err = r.Respond(ctx, record, alert.Decision("escalate"), "d1")
	require.ErrorIs(t, err, ErrInvalidDecision)
}

// TestRespond_WonThenLost verifies the basic race outcome mapping and the
// decision-to-status mapping.
func TestRespond_WonThenLost(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	r := New(s)
	ctx := context.Background()

	record := newActiveAlert(t, s, "d1", "d2")

	outcome, err := r.Respond(ctx, record, alert.DecisionAcknowledge, "d1")
	require.NoError(t, err)
	require.Equal(t, OutcomeWon, outcome)

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, alert.StatusAcknowledged, got.Status)
	require.Equal(t, "d1", got.RespondedBy)

	// Terminal alert loses deterministically, with no error surfaced.
	for i := 0; i < 3; i++ {
		outcome, err = r.Respond(ctx, record, alert.DecisionDismiss, "d2")
		require.NoError(t, err)
		require.Equal(t, OutcomeLost, outcome)
	}
}

// TestRespond_DismissResolves verifies dismiss drives the alert to resolved.
func TestRespond_DismissResolves(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	r := New(s)
	ctx := context.Background()

	record := newActiveAlert(t, s, "d1")

	outcome, err := r.Respond(ctx, record, alert.DecisionDismiss, "d1")
	require.NoError(t, err)
	require.Equal(t, OutcomeWon, outcome)

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, alert.StatusResolved, got.Status)
}

// TestRespond_ConcurrentRace fires acknowledge and dismiss concurrently
// from two responders; exactly one must win and the final status must match
// the winner's decision.
func TestRespond_ConcurrentRace(t *testing.T) {
	t.Parallel()

	s := memory.NewStore()
	r := New(s)
	ctx := context.Background()

	record := newActiveAlert(t, s, "d1", "d2")

	type result struct {
		responder string
		decision  alert.Decision
		outcome   Outcome
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []result
	)

	for _, attempt := range []struct {
		responder string
		decision  alert.Decision
	}{
		{responder: "d1", decision: alert.DecisionAcknowledge},
		{responder: "d2", decision: alert.DecisionDismiss},
	} {
		wg.Add(1)

		go func(responder string, decision alert.Decision) {
			defer wg.Done()

			outcome, err := r.Respond(ctx, record, decision, responder)
			require.NoError(t, err)

			mu.Lock()
			results = append(results, result{responder: responder, decision: decision, outcome: outcome})
			mu.Unlock()
		}(attempt.responder, attempt.decision)
	}

	wg.Wait()

	var winner *result

	for i := range results {
		if results[i].outcome == OutcomeWon {
			require.Nil(t, winner, "more than one winner")
			winner = &results[i]
		}
	}

	require.NotNil(t, winner, "no winner")

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, winner.decision.TargetStatus(), got.Status)
	require.Equal(t, winner.responder, got.RespondedBy)
}

// timeoutStore wraps a store and fails TryTransition with a deadline error,
// optionally applying the write first to model a server-side landing.
type timeoutStore struct {
	store.Store

	// applyFirst performs the transition before reporting the timeout.
	applyFirst bool
}

func (s *timeoutStore) TryTransition(
	ctx context.Context,
	id string,
	from, to alert.Status,
	responderID string,
	at time.Time,
) (bool, error) {
	if s.applyFirst {
		_, _ = s.Store.TryTransition(ctx, id, from, to, responderID, at)
	}

	return false, context.DeadlineExceeded
}

// TestRespond_TimeoutReconciles covers the ambiguous-outcome paths: a write
// that landed despite the timeout reports won, one that landed for someone
// else reports lost, and a still-active record stays unknown.
func TestRespond_TimeoutReconciles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// The timed-out write actually landed: reconcile reports won.
	backing := memory.NewStore()
	record := newActiveAlert(t, backing, "d1", "d2")
	r := New(&timeoutStore{Store: backing, applyFirst: true})

	outcome, err := r.Respond(ctx, record, alert.DecisionAcknowledge, "d1")
	require.NoError(t, err)
	require.Equal(t, OutcomeWon, outcome)

	// Someone else settled the alert: reconcile reports lost, no error.
	backing = memory.NewStore()
	record = newActiveAlert(t, backing, "d1", "d2")
	_, err = backing.TryTransition(ctx, record.ID, alert.StatusActive, alert.StatusResolved, "d2", time.Now())
	require.NoError(t, err)

	r = New(&timeoutStore{Store: backing})

	outcome, err = r.Respond(ctx, record, alert.DecisionAcknowledge, "d1")
	require.NoError(t, err)
	require.Equal(t, OutcomeLost, outcome)

	// Still active after the timeout: outcome remains unknown.
	backing = memory.NewStore()
	record = newActiveAlert(t, backing, "d1", "d2")
	r = New(&timeoutStore{Store: backing})

	_, err = r.Respond(ctx, record, alert.DecisionAcknowledge, "d1")
	require.ErrorIs(t, err, ErrOutcomeUnknown)
}
