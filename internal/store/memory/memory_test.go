package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// newActiveAlert returns a minimal valid alert assigned to the given responders.
func newActiveAlert(responders ...string) *alert.Record {
	return &alert.Record{
		PatientID:          "p1",
		PatientName:        "Anna Petrova",
		PatientPhone:       "+7 900 000-00-00",
		Severity:           alert.SeverityCritical,
		AssignedResponders: responders,
	}
}

// TestCreateGet verifies creation defaults and point lookup.
func TestCreateGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	id, err := s.Create(ctx, newActiveAlert("d1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, alert.StatusActive, got.Status)
	require.False(t, got.CreatedAt.IsZero())
	require.Empty(t, got.RespondedBy)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestCreate_Validation verifies rejected records.
func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	_, err := s.Create(ctx, nil)
	require.ErrorIs(t, err, store.ErrRecordRequired)

	_, err = s.Create(ctx, &alert.Record{Severity: "mild", AssignedResponders: []string{"d1"}})
	require.ErrorIs(t, err, store.ErrInvalidSeverity)

	_, err = s.Create(ctx, &alert.Record{Severity: alert.SeverityUrgent})
	require.ErrorIs(t, err, store.ErrRespondersRequired)
}

// TestTryTransition_AtMostOne runs many concurrent responders against one
// alert and asserts exactly one transition is accepted.
func TestTryTransition_AtMostOne(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	const responders = 32

	assigned := make([]string, responders)
	for i := range assigned {
		assigned[i] = fmt.Sprintf("d%02d", i)
	}

	id, err := s.Create(ctx, newActiveAlert(assigned...))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for i := 0; i < responders; i++ {
		// Mix acknowledge and dismiss targets.
		target := alert.StatusAcknowledged
		if i%2 == 1 {
			target = alert.StatusResolved
		}

		wg.Add(1)

		go func(responderID string, to alert.Status) {
			defer wg.Done()

			ok, err := s.TryTransition(ctx, id, alert.StatusActive, to, responderID, time.Now())
			require.NoError(t, err)

			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(assigned[i], target)
	}

	wg.Wait()
	require.Equal(t, 1, accepted)

	// The persisted status matches a terminal state and carries attribution.
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, got.Status.IsTerminal())
	require.NotEmpty(t, got.RespondedBy)
	require.False(t, got.RespondedAt.IsZero())
}

// TestTryTransition_TerminalIsFinal verifies deterministic rejection once
// the record left the active status.
func TestTryTransition_TerminalIsFinal(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	id, err := s.Create(ctx, newActiveAlert("d1", "d2"))
	require.NoError(t, err)

	ok, err := s.TryTransition(ctx, id, alert.StatusActive, alert.StatusAcknowledged, "d1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		ok, err = s.TryTransition(ctx, id, alert.StatusActive, alert.StatusResolved, "d2", time.Now())
		require.NoError(t, err)
		require.False(t, ok)
	}

	_, err = s.TryTransition(ctx, "missing", alert.StatusActive, alert.StatusResolved, "d2", time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestSubscribeActiveFor verifies the initial emission, filtering by
// responder, and removal on transition.
func TestSubscribeActiveFor(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	sub, err := s.SubscribeActiveFor(ctx, "d1")
	require.NoError(t, err)

	defer sub.Close()

	// Initial view is empty.
	require.Empty(t, waitForUpdate(t, sub))

	// An alert for another responder is invisible here.
	_, err = s.Create(ctx, newActiveAlert("d2"))
	require.NoError(t, err)

	id, err := s.Create(ctx, newActiveAlert("d1", "d2"))
	require.NoError(t, err)

	set := waitForUpdate(t, sub)
	require.Len(t, set, 1)
	require.Equal(t, id, set[0].ID)

	// Transition removes the alert from the live view.
	ok, err := s.TryTransition(ctx, id, alert.StatusActive, alert.StatusResolved, "d2", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	require.Empty(t, waitForUpdate(t, sub))
}

// TestClose terminates subscriptions with ErrClosed and rejects further calls.
func TestClose(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	sub, err := s.SubscribeActiveFor(ctx, "d1")
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))

	// Drain until closure.
	for range sub.Updates() { //nolint:revive // Draining the channel is the point.
	}

	require.ErrorIs(t, sub.Err(), store.ErrClosed)

	_, err = s.Create(ctx, newActiveAlert("d1"))
	require.ErrorIs(t, err, store.ErrClosed)

	_, err = s.SubscribeActiveFor(ctx, "d1")
	require.ErrorIs(t, err, store.ErrClosed)
}

// waitForUpdate returns the next emission or fails the test after a timeout.
func waitForUpdate(t *testing.T, sub store.Subscription) []*alert.Record {
	t.Helper()

	select {
	case set, ok := <-sub.Updates():
		require.True(t, ok, "subscription terminated: %v", sub.Err())
		return set
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription update")
		return nil
	}
}
