package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/resolver"
	"github.com/clinicport/emergency-alerts/internal/service/common"
	"github.com/clinicport/emergency-alerts/internal/session"
)

// Options configures the watcher process.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ResponderID identifies this watcher; detected from user@host if empty.
	ResponderID string
	// RespondTo optionally names an alert to settle as soon as it shows up
	// in the view. Used by keyboard-free operator flows.
	RespondTo string
	// Decision is the decision for RespondTo, acknowledge or dismiss.
	Decision string
	// Muted starts the watcher without audible escalation cues.
	Muted bool
	// LocalDismiss makes dismiss hide alerts from this watcher only.
	LocalDismiss bool

	// Out receives the rendered view and the bell. Typically os.Stdout.
	Out io.Writer
}

// Run watches the responder's alert view until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alert-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	responderID := opts.ResponderID
	if responderID == "" {
		responderID, err = common.DetectResponderID()
		if err != nil {
			return fmt.Errorf("detect responder: %w", err)
		}
	}

	alertStore, err := common.NewStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if err := alertStore.Close(context.Background()); err != nil {
			logger.ErrorKV(ctx, "Failed to close store", "error", err)
		}
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	w := &watcher{opts: opts, out: out}

	sess, err := session.New(session.Options{
		Store:              alertStore,
		ResponderID:        responderID,
		Subscription:       cfg.Subscription,
		EscalationInterval: cfg.Escalation.Interval,
		LocalDismiss:       opts.LocalDismiss,
		Hooks: session.Hooks{
			OnAlertSet:       func(alerts []*alert.Record) { w.render(ctx, alerts) },
			OnEscalationTick: func() { w.bell() },
			OnEscalationStop: func() { w.println("-- all alerts settled --") },
			OnStaleView:      func() { w.println("!! connection lost, view may be stale !!") },
			OnViewFresh:      func() { w.println("-- view is live again --") },
		},
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	w.session = sess
	sess.SetMuted(opts.Muted)

	logger.InfoKV(ctx, "Watching alerts",
		"responder_id", responderID, "store_backend", cfg.Store.Backend)

	sess.Run(ctx)

	return nil
}

// watcher renders session events for one terminal.
type watcher struct {
	opts    *Options
	out     io.Writer
	session *session.Session

	// respondOnce guards the flag-driven decision.
	respondOnce sync.Once

	// mu serializes terminal writes.
	mu sync.Mutex
}

// render prints the ordered view and triggers the flag-driven decision when
// its alert appears.
func (w *watcher) render(ctx context.Context, alerts []*alert.Record) {
	w.mu.Lock()

	fmt.Fprintf(w.out, "%d active alert(s)\n", len(alerts))

	for _, record := range alerts {
		fmt.Fprintf(w.out, "  [%s] %s — %s (%s)\n",
			record.Severity, record.PatientName, record.Location, record.ID)
	}

	w.mu.Unlock()

	if w.opts.RespondTo == "" {
		return
	}

	for _, record := range alerts {
		if record.ID == w.opts.RespondTo {
			w.respondOnce.Do(func() { go w.respond(ctx) })
			return
		}
	}
}

// respond settles the flagged alert once.
func (w *watcher) respond(ctx context.Context) {
	outcome, err := w.session.Respond(ctx, w.opts.RespondTo, alert.Decision(w.opts.Decision))
	if err != nil {
		logger.ErrorKV(ctx, "Respond failed", "alert_id", w.opts.RespondTo, "error", err)
		w.println(fmt.Sprintf("!! respond failed: %v !!", err))

		return
	}

	if outcome == resolver.OutcomeWon {
		w.println(fmt.Sprintf("-- %s: %s accepted --", w.opts.RespondTo, w.opts.Decision))
	} else {
		w.println(fmt.Sprintf("-- %s: already settled by someone else --", w.opts.RespondTo))
	}
}

// bell rings the terminal bell, the audible escalation cue.
func (w *watcher) bell() {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprint(w.out, "\a")
}

func (w *watcher) println(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintln(w.out, line)
}
