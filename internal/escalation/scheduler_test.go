package escalation

import (
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// TestScheduler_Boundary feeds the set-size sequence [0,1,2,1,0] and
// asserts the cadence starts once and stops once.
func TestScheduler_Boundary(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var (
			ticks atomic.Int64
			stops atomic.Int64
		)

		s := NewScheduler(time.Second, Hooks{
			OnTick: func() { ticks.Add(1) },
			OnStop: func() { stops.Add(1) },
		})
		defer s.Stop()

		s.Update(0)
		synctest.Wait()
		require.Zero(t, ticks.Load())
		require.False(t, s.Escalating())

		// Non-empty set starts the cadence with an immediate first cue.
		s.Update(1)
		synctest.Wait()
		require.Equal(t, int64(1), ticks.Load())
		require.True(t, s.Escalating())

		// Let two more intervals elapse.
		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, int64(3), ticks.Load())

		// A newly-added alert must not restart or stack the cadence.
		s.Update(2)
		synctest.Wait()
		require.Equal(t, int64(3), ticks.Load())

		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, int64(4), ticks.Load())

		// Shrinking to a still non-empty set keeps escalating.
		s.Update(1)
		require.True(t, s.Escalating())

		// Empty set stops the instant it is observed.
		s.Update(0)
		require.False(t, s.Escalating())
		require.Equal(t, int64(1), stops.Load())

		// No further ticks after idle.
		time.Sleep(5 * time.Second)
		synctest.Wait()
		require.Equal(t, int64(4), ticks.Load())
		require.Equal(t, int64(1), stops.Load())
	})
}

// TestScheduler_Mute verifies that muting suppresses the cue only, keeping
// the state machine running so unmute resumes the cadence.
func TestScheduler_Mute(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var ticks atomic.Int64

		s := NewScheduler(time.Second, Hooks{
			OnTick: func() { ticks.Add(1) },
		})
		defer s.Stop()

		s.SetMuted(true)
		s.Update(1)

		time.Sleep(3 * time.Second)
		synctest.Wait()
		require.Zero(t, ticks.Load())
		require.True(t, s.Escalating())

		s.SetMuted(false)

		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, int64(1), ticks.Load())
	})
}

// TestScheduler_Stop verifies teardown halts the cadence without an
// "all clear" cue and refuses later updates.
func TestScheduler_Stop(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var (
			ticks atomic.Int64
			stops atomic.Int64
		)

		s := NewScheduler(time.Second, Hooks{
			OnTick: func() { ticks.Add(1) },
			OnStop: func() { stops.Add(1) },
		})

		s.Update(1)
		synctest.Wait()
		require.Equal(t, int64(1), ticks.Load())

		s.Stop()
		require.False(t, s.Escalating())
		require.Zero(t, stops.Load())

		s.Update(1)
		time.Sleep(5 * time.Second)
		synctest.Wait()
		require.Equal(t, int64(1), ticks.Load())
	})
}
