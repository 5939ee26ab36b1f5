package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// newTestStore starts a miniredis server and connects a store to it.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := NewStore(context.Background(), config.RedisConfig{Addr: mr.Addr()}, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})

	return s
}

// newActiveAlert returns a minimal valid alert assigned to the given responders.
func newActiveAlert(responders ...string) *alert.Record {
	return &alert.Record{
		PatientID:          "p1",
		PatientName:        "Anna Petrova",
		PatientPhone:       "+7 900 000-00-00",
		Severity:           alert.SeverityUrgent,
		AssignedResponders: responders,
	}
}

// TestCreateGet verifies the record and status keys round-trip.
func TestCreateGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newActiveAlert("d1", "d2"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, alert.StatusActive, got.Status)
	require.Equal(t, []string{"d1", "d2"}, got.AssignedResponders)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestTryTransition verifies acceptance, rejection after terminal, and the
// missing-record error.
func TestTryTransition(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newActiveAlert("d1", "d2"))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)

	ok, err := s.TryTransition(ctx, id, alert.StatusActive, alert.StatusAcknowledged, "d1", at)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, alert.StatusAcknowledged, got.Status)
	require.Equal(t, "d1", got.RespondedBy)
	require.Equal(t, at, got.RespondedAt)

	// Terminal status rejects deterministically.
	ok, err = s.TryTransition(ctx, id, alert.StatusActive, alert.StatusResolved, "d2", time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.TryTransition(ctx, "missing", alert.StatusActive, alert.StatusResolved, "d2", time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestTryTransition_Concurrent races two responders and requires exactly one
// accepted write.
func TestTryTransition_Concurrent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newActiveAlert("d1", "d2"))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for _, attempt := range []struct {
		responder string
		to        alert.Status
	}{
		{responder: "d1", to: alert.StatusAcknowledged},
		{responder: "d2", to: alert.StatusResolved},
	} {
		wg.Add(1)

		go func(responder string, to alert.Status) {
			defer wg.Done()

			ok, err := s.TryTransition(ctx, id, alert.StatusActive, to, responder, time.Now())
			require.NoError(t, err)

			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(attempt.responder, attempt.to)
	}

	wg.Wait()
	require.Equal(t, 1, accepted)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, got.Status.IsTerminal())
}

// TestSubscribeActiveFor verifies initial emission and pub/sub driven updates.
func TestSubscribeActiveFor(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// Pre-existing alert appears in the initial emission.
	first, err := s.Create(ctx, newActiveAlert("d1"))
	require.NoError(t, err)

	sub, err := s.SubscribeActiveFor(ctx, "d1")
	require.NoError(t, err)

	defer sub.Close()

	set := waitForUpdate(t, sub)
	require.Len(t, set, 1)
	require.Equal(t, first, set[0].ID)

	// A new assignment pushes a fresh set.
	second, err := s.Create(ctx, newActiveAlert("d1", "d2"))
	require.NoError(t, err)

	set = waitForSetSize(t, sub, 2)
	ids := []string{set[0].ID, set[1].ID}
	require.ElementsMatch(t, []string{first, second}, ids)

	// A settled alert disappears from the view.
	ok, err := s.TryTransition(ctx, second, alert.StatusActive, alert.StatusResolved, "d2", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	set = waitForSetSize(t, sub, 1)
	require.Equal(t, first, set[0].ID)
}

// waitForUpdate returns the next emission or fails the test after a timeout.
func waitForUpdate(t *testing.T, sub store.Subscription) []*alert.Record {
	t.Helper()

	select {
	case set, ok := <-sub.Updates():
		require.True(t, ok, "subscription terminated: %v", sub.Err())
		return set
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for subscription update")
		return nil
	}
}

// waitForSetSize consumes emissions until one carries the wanted number of
// alerts. Intermediate emissions may be coalesced away, so sizes are not
// asserted along the way.
func waitForSetSize(t *testing.T, sub store.Subscription, size int) []*alert.Record {
	t.Helper()

	deadline := time.After(3 * time.Second)

	for {
		select {
		case set, ok := <-sub.Updates():
			require.True(t, ok, "subscription terminated: %v", sub.Err())

			if len(set) == size {
				return set
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a set of %d alerts", size)
			return nil
		}
	}
}
