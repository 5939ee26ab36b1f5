package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/escalation"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/metrics"
	"github.com/clinicport/emergency-alerts/internal/resolver"
	"github.com/clinicport/emergency-alerts/internal/store"
	"github.com/clinicport/emergency-alerts/internal/subscriber"
)

// Hooks delivers session events to the owning client (a WebSocket
// connection or a terminal watcher). Callbacks run on internal goroutines
// and must not block for long or call back into the session.
type Hooks struct {
	// OnAlertSet receives the ordered view whenever it changes.
	OnAlertSet func(alerts []*alert.Record)
	// OnEscalationTick fires once per escalation cue while alerts are live.
	OnEscalationTick func()
	// OnEscalationStop fires when the last live alert leaves the view.
	OnEscalationStop func()
	// OnStaleView fires when the live view can no longer be trusted.
	OnStaleView func()
	// OnViewFresh fires when the view is live again after OnStaleView.
	OnViewFresh func()
}

// Options configures a responder session.
type Options struct {
	// Store backs the subscription and the response writes.
	Store store.Store
	// ResponderID identifies whose session this is.
	ResponderID string
	// Subscription tunes reconnect backoff and the staleness ceiling.
	Subscription config.SubscriptionConfig
	// EscalationInterval is the cadence between escalation cues.
	EscalationInterval time.Duration
	// LocalDismiss makes dismiss hide the alert from this responder only,
	// leaving it active for everyone else. The default writes dismiss
	// through to the store as a terminal transition.
	LocalDismiss bool
	// Hooks receives session events.
	Hooks Hooks
}

// Session is one responder's live coordination state.
type Session struct {
	responderID  string
	localDismiss bool
	hooks        Hooks

	sub   *subscriber.Subscriber
	sched *escalation.Scheduler
	res   *resolver.Resolver
}

var errResponderRequired = errors.New("responder id must be provided")

// New wires a session together. Run must be called to start it.
func New(opts Options) (*Session, error) {
	if opts.ResponderID == "" {
		return nil, errResponderRequired
	}

	if opts.EscalationInterval <= 0 {
		opts.EscalationInterval = config.DefaultEscalationInterval
	}

	s := &Session{
		responderID:  opts.ResponderID,
		localDismiss: opts.LocalDismiss,
		hooks:        opts.Hooks,
	}

	s.sched = escalation.NewScheduler(opts.EscalationInterval, escalation.Hooks{
		OnTick: func() {
			if s.hooks.OnEscalationTick != nil {
				s.hooks.OnEscalationTick()
			}
		},
		OnStop: func() {
			if s.hooks.OnEscalationStop != nil {
				s.hooks.OnEscalationStop()
			}
		},
	})

	// The subscriber is the single writer feeding the scheduler: every view
	// change updates the cadence before the client sees the set.
	sub, err := subscriber.New(opts.Store, opts.ResponderID, opts.Subscription, subscriber.Hooks{
		OnAlertSetChanged: func(_ string, alerts []*alert.Record) {
			s.sched.Update(len(alerts))

			if s.hooks.OnAlertSet != nil {
				s.hooks.OnAlertSet(alerts)
			}
		},
		OnStaleView: func(_ string) {
			if s.hooks.OnStaleView != nil {
				s.hooks.OnStaleView()
			}
		},
		OnViewFresh: func(_ string) {
			if s.hooks.OnViewFresh != nil {
				s.hooks.OnViewFresh()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	s.sub = sub
	s.res = resolver.New(opts.Store)

	return s, nil
}

// Run drives the session until the context is canceled. The subscription
// and the escalation cadence both stop before Run returns.
func (s *Session) Run(ctx context.Context) {
	ctx = logger.WithKV(ctx, "responder_id", s.responderID)

	metrics.ResponderSessions.Inc()
	defer metrics.ResponderSessions.Dec()

	logger.InfoKV(ctx, "Responder session started")
	defer logger.InfoKV(ctx, "Responder session finished")

	defer s.sched.Stop()

	s.sub.Run(ctx)
}

// View returns a copy of the current display-ordered alert set.
func (s *Session) View() []*alert.Record {
	return s.sub.View()
}

// SetMuted toggles delivery of escalation cues. The cadence itself keeps
// running so unmuting resumes cues without restarting it.
func (s *Session) SetMuted(muted bool) {
	s.sched.SetMuted(muted)
}

// Respond executes a decision for an alert currently in the view. A lost
// race immediately drops the alert from the local view, so the client never
// shows a respond control for an alert someone else already settled. An
// alert missing from the view reports lost without touching the store.
func (s *Session) Respond(ctx context.Context, alertID string, decision alert.Decision) (resolver.Outcome, error) {
	record := s.find(alertID)
	if record == nil {
		return resolver.OutcomeLost, nil
	}

	if s.localDismiss && decision == alert.DecisionDismiss {
		// Local hide only: everyone else keeps seeing the alert as active,
		// and later pushes must not resurface it here.
		s.sub.Hide(alertID)
		logger.InfoKV(ctx, "Alert dismissed locally",
			"alert_id", alertID, "responder_id", s.responderID)

		return resolver.OutcomeWon, nil
	}

	outcome, err := s.res.Respond(ctx, record, decision, s.responderID)
	if err != nil {
		return outcome, err
	}

	if outcome == resolver.OutcomeLost {
		s.sub.Discard(alertID)
	}

	return outcome, nil
}

// find looks an alert up in the current view.
func (s *Session) find(alertID string) *alert.Record {
	for _, record := range s.sub.View() {
		if record.ID == alertID {
			return record
		}
	}

	return nil
}
