package subscriber

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/metrics"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// Hooks carries the callbacks a subscriber feeds. OnAlertSetChanged is
// required; the stale-view pair is optional.
type Hooks struct {
	// OnAlertSetChanged receives the ordered view whenever it changes.
	OnAlertSetChanged func(responderID string, alerts []*alert.Record)
	// OnStaleView fires once when reconnects keep failing beyond the
	// configured ceiling: live alerts may be stale.
	OnStaleView func(responderID string)
	// OnViewFresh fires when a live emission arrives after OnStaleView.
	OnViewFresh func(responderID string)
}

// Subscriber keeps a responder's local alert view in sync with the store.
type Subscriber struct {
	// store provides the live subscription.
	store store.Store
	// responderID identifies whose view this is.
	responderID string
	// hooks receives view changes and staleness notifications.
	hooks Hooks
	// cfg tunes reconnect backoff and the staleness ceiling.
	cfg config.SubscriptionConfig

	// mu protects the fields below.
	mu sync.Mutex
	// view is the last emitted, display-ordered set.
	view []*alert.Record
	// primed records that the first view reached the callback. The first
	// emission always goes out, even when it matches the empty zero view.
	primed bool
	// hidden ids are filtered out of every applied emission for as long as
	// the store keeps pushing them. Used by local dismiss, where the record
	// stays active for everyone else.
	hidden map[string]struct{}
	// stale records that OnStaleView fired and OnViewFresh has not yet.
	stale bool
}

// errRequired values reported by New.
var (
	errStoreRequired    = errors.New("store must be provided")
	errCallbackRequired = errors.New("alert set callback must be provided")
)

// New creates a subscriber for the given responder. Run must be called to
// start delivering view changes.
func New(s store.Store, responderID string, cfg config.SubscriptionConfig, hooks Hooks) (*Subscriber, error) {
	if s == nil {
		return nil, errStoreRequired
	}

	if hooks.OnAlertSetChanged == nil {
		return nil, errCallbackRequired
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = config.DefaultInitialBackoff
	}

	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = config.DefaultStaleAfter
	}

	return &Subscriber{
		store:       s,
		responderID: responderID,
		hooks:       hooks,
		cfg:         cfg,
		hidden:      make(map[string]struct{}),
	}, nil
}

// Run subscribes and keeps the view in sync until the context is canceled.
// Subscription failures are contained here: the view is never cleared on
// disconnect and reconnects use capped exponential backoff.
func (s *Subscriber) Run(ctx context.Context) {
	ctx = logger.WithKV(ctx, "responder_id", s.responderID)

	var (
		backoff  = s.cfg.InitialBackoff
		failures int
	)

	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := s.store.SubscribeActiveFor(ctx, s.responderID)
		if err == nil {
			var delivered bool

			delivered, err = s.consume(ctx, sub)
			if err == nil {
				// Deliberate close, session is over.
				return
			}

			// Only a stream that produced a live emission counts as healthy.
			// A stream that dies before emitting anything keeps escalating
			// toward the backoff cap and the staleness ceiling.
			if delivered {
				failures = 0
				backoff = s.cfg.InitialBackoff
			}
		}

		if ctx.Err() != nil {
			return
		}

		failures++

		metrics.SubscriptionReconnects.Inc()
		logger.WarnKV(ctx, "Alert subscription lost, reconnecting",
			"error", err, "backoff", backoff.String(), "failures", failures)

		if failures >= s.cfg.StaleAfter {
			s.markStale()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

// View returns a copy of the current display-ordered view.
func (s *Subscriber) View() []*alert.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return alert.CloneAll(s.view)
}

// Discard immediately removes an alert from the local view, without waiting
// for the next store push. Used when this responder lost the response race:
// a stale "respond" button must never linger. The removal is one-shot; the
// record is terminal, so the store stops pushing it on its own.
func (s *Subscriber) Discard(alertID string) {
	s.remove(alertID, false)
}

// Hide removes an alert from the local view and keeps it out of every later
// emission for as long as the store pushes it. Used by local dismiss: the
// record stays active for everyone else, so without the persistent filter
// the very next push would resurface it here.
func (s *Subscriber) Hide(alertID string) {
	s.remove(alertID, true)
}

func (s *Subscriber) remove(alertID string, persistent bool) {
	s.mu.Lock()

	if persistent {
		s.hidden[alertID] = struct{}{}
	}

	kept := s.view[:0]

	for _, record := range s.view {
		if record.ID != alertID {
			kept = append(kept, record)
		}
	}

	if len(kept) == len(s.view) {
		s.mu.Unlock()
		return
	}

	s.view = kept
	emitted := alert.CloneAll(s.view)
	s.mu.Unlock()

	s.hooks.OnAlertSetChanged(s.responderID, emitted)
}

// consume forwards emissions from one subscription until it terminates,
// reporting whether at least one emission was delivered. Returns a nil
// error only on deliberate close.
func (s *Subscriber) consume(ctx context.Context, sub store.Subscription) (bool, error) {
	defer sub.Close()

	delivered := false

	for {
		select {
		case <-ctx.Done():
			return delivered, nil
		case set, ok := <-sub.Updates():
			if !ok {
				return delivered, sub.Err()
			}

			s.apply(set)

			delivered = true
		}
	}
}

// apply orders an emission, deduplicates it against the previous view and
// forwards it when the rendered view actually changes.
func (s *Subscriber) apply(set []*alert.Record) {
	alert.Sort(set)

	s.mu.Lock()

	set = s.filterHiddenLocked(set)

	wasStale := s.stale
	s.stale = false

	changed := !s.primed || !alert.SameView(s.view, set)
	if !changed && !wasStale {
		s.mu.Unlock()
		return
	}

	s.primed = true
	s.view = alert.CloneAll(set)
	emitted := alert.CloneAll(set)
	s.mu.Unlock()

	if wasStale && s.hooks.OnViewFresh != nil {
		s.hooks.OnViewFresh(s.responderID)
	}

	if changed {
		s.hooks.OnAlertSetChanged(s.responderID, emitted)
	}
}

// filterHiddenLocked drops hidden alerts from an emission and forgets
// hidden ids the store no longer pushes: once the record left the active
// set there is nothing left to hide. Caller holds s.mu.
func (s *Subscriber) filterHiddenLocked(set []*alert.Record) []*alert.Record {
	if len(s.hidden) == 0 {
		return set
	}

	present := make(map[string]struct{}, len(set))
	kept := set[:0]

	for _, record := range set {
		present[record.ID] = struct{}{}

		if _, ok := s.hidden[record.ID]; !ok {
			kept = append(kept, record)
		}
	}

	for id := range s.hidden {
		if _, ok := present[id]; !ok {
			delete(s.hidden, id)
		}
	}

	return kept
}

// markStale fires the staleness notification once per outage.
func (s *Subscriber) markStale() {
	s.mu.Lock()

	if s.stale {
		s.mu.Unlock()
		return
	}

	s.stale = true
	s.mu.Unlock()

	if s.hooks.OnStaleView != nil {
		s.hooks.OnStaleView(s.responderID)
	}
}
