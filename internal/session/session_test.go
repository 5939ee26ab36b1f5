package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/resolver"
	"github.com/clinicport/emergency-alerts/internal/store"
	"github.com/clinicport/emergency-alerts/internal/store/memory"
)

// sessionProbe records every event a session emits.
type sessionProbe struct {
	mu    sync.Mutex
	views [][]*alert.Record

	ticks atomic.Int64
	stops atomic.Int64
	stale atomic.Int64
	fresh atomic.Int64
}

func (p *sessionProbe) hooks() Hooks {
	return Hooks{
		OnAlertSet: func(alerts []*alert.Record) {
			p.mu.Lock()
			defer p.mu.Unlock()

			p.views = append(p.views, alerts)
		},
		OnEscalationTick: func() { p.ticks.Add(1) },
		OnEscalationStop: func() { p.stops.Add(1) },
		OnStaleView:      func() { p.stale.Add(1) },
		OnViewFresh:      func() { p.fresh.Add(1) },
	}
}

func (p *sessionProbe) lastView() []*alert.Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.views) == 0 {
		return nil
	}

	return p.views[len(p.views)-1]
}

// startSession builds and runs a session for the responder, returning the
// session, its probe and a cancel func.
func startSession(
	t *testing.T,
	s store.Store,
	responderID string,
	localDismiss bool,
) (*Session, *sessionProbe, context.CancelFunc) {
	t.Helper()

	probe := &sessionProbe{}

	sess, err := New(Options{
		Store:              s,
		ResponderID:        responderID,
		EscalationInterval: time.Second,
		LocalDismiss:       localDismiss,
		Hooks:              probe.hooks(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	go sess.Run(ctx)

	return sess, probe, cancel
}

func raiseAlert(t *testing.T, s store.Store, severity alert.Severity, responders ...string) string {
	t.Helper()

	id, err := s.Create(context.Background(), &alert.Record{
		PatientID:          "p1",
		PatientName:        "Anna Petrova",
		Severity:           severity,
		AssignedResponders: responders,
	})
	require.NoError(t, err)

	return id
}

// TestSession_EscalationFollowsView checks the cadence starts when the view
// becomes non-empty, keeps its phase while it stays non-empty and stops with
// a cue when the last alert settles.
func TestSession_EscalationFollowsView(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s := memory.NewStore()
		defer s.Close(context.Background())

		sess, probe, cancel := startSession(t, s, "d1", false)
		defer cancel()

		synctest.Wait()
		require.Zero(t, probe.ticks.Load())

		raiseAlert(t, s, alert.SeverityCritical, "d1")
		synctest.Wait()

		// Immediate first cue on the idle-to-escalating boundary.
		require.Equal(t, int64(1), probe.ticks.Load())
		require.Len(t, sess.View(), 1)

		// A second alert grows the set without restarting the cadence.
		raiseAlert(t, s, alert.SeverityUrgent, "d1")
		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, int64(3), probe.ticks.Load())

		// Muting suppresses cues without stopping the cadence.
		sess.SetMuted(true)
		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, int64(3), probe.ticks.Load())
		sess.SetMuted(false)

		// Settling both alerts empties the view and stops the cadence.
		for _, record := range sess.View() {
			outcome, err := sess.Respond(context.Background(), record.ID, alert.DecisionAcknowledge)
			require.NoError(t, err)
			require.Equal(t, resolver.OutcomeWon, outcome)
		}

		synctest.Wait()
		require.Empty(t, sess.View())
		require.Equal(t, int64(1), probe.stops.Load())

		ticks := probe.ticks.Load()
		time.Sleep(3 * time.Second)
		synctest.Wait()
		require.Equal(t, ticks, probe.ticks.Load())
	})
}

// TestSession_ConcurrentResponse is the two-responder race: exactly one
// session wins, the loser's view drops the alert immediately and both views
// converge on empty.
func TestSession_ConcurrentResponse(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s := memory.NewStore()
		defer s.Close(context.Background())

		first, _, cancelFirst := startSession(t, s, "d1", false)
		defer cancelFirst()

		second, _, cancelSecond := startSession(t, s, "d2", false)
		defer cancelSecond()

		id := raiseAlert(t, s, alert.SeverityCritical, "d1", "d2")
		synctest.Wait()
		require.Len(t, first.View(), 1)
		require.Len(t, second.View(), 1)

		var (
			wg       sync.WaitGroup
			outcomes = make([]resolver.Outcome, 2)
		)

		for i, attempt := range []struct {
			sess     *Session
			decision alert.Decision
		}{
			{sess: first, decision: alert.DecisionAcknowledge},
			{sess: second, decision: alert.DecisionDismiss},
		} {
			wg.Add(1)

			go func(i int, sess *Session, decision alert.Decision) {
				defer wg.Done()

				outcome, err := sess.Respond(context.Background(), id, decision)
				require.NoError(t, err)

				outcomes[i] = outcome
			}(i, attempt.sess, attempt.decision)
		}

		wg.Wait()
		synctest.Wait()

		won := 0

		for _, outcome := range outcomes {
			if outcome == resolver.OutcomeWon {
				won++
			}
		}

		require.Equal(t, 1, won)
		require.Empty(t, first.View())
		require.Empty(t, second.View())

		record, err := s.Get(context.Background(), id)
		require.NoError(t, err)
		require.True(t, record.Status.IsTerminal())
	})
}

// TestSession_LocalDismiss verifies the per-session dismiss mode hides the
// alert locally while everyone else keeps seeing it active.
func TestSession_LocalDismiss(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s := memory.NewStore()
		defer s.Close(context.Background())

		local, _, cancelLocal := startSession(t, s, "d1", true)
		defer cancelLocal()

		other, _, cancelOther := startSession(t, s, "d2", false)
		defer cancelOther()

		id := raiseAlert(t, s, alert.SeverityUrgent, "d1", "d2")
		synctest.Wait()

		outcome, err := local.Respond(context.Background(), id, alert.DecisionDismiss)
		require.NoError(t, err)
		require.Equal(t, resolver.OutcomeWon, outcome)

		synctest.Wait()
		require.Empty(t, local.View())
		require.Len(t, other.View(), 1)

		record, err := s.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, alert.StatusActive, record.Status)

		// A later full-set push must not resurface the dismissed alert:
		// it is still active in the store, so every emission carries it.
		secondID := raiseAlert(t, s, alert.SeverityCritical, "d1", "d2")
		synctest.Wait()

		localView := local.View()
		require.Len(t, localView, 1)
		require.Equal(t, secondID, localView[0].ID)
		require.Len(t, other.View(), 2)
	})
}

// TestSession_RespondUnknownAlert reports lost without a store write.
func TestSession_RespondUnknownAlert(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s := memory.NewStore()
		defer s.Close(context.Background())

		sess, _, cancel := startSession(t, s, "d1", false)
		defer cancel()

		synctest.Wait()

		outcome, err := sess.Respond(context.Background(), "no-such-alert", alert.DecisionAcknowledge)
		require.NoError(t, err)
		require.Equal(t, resolver.OutcomeLost, outcome)
	})
}
