package ws

import "github.com/clinicport/emergency-alerts/internal/domain/alert"

// Server-to-client frame types.
const (
	// FrameAlertSet carries the full ordered alert view.
	FrameAlertSet = "alert_set"
	// FrameEscalationTick is one escalation cue.
	FrameEscalationTick = "escalation_tick"
	// FrameEscalationStop marks the end of the escalation cadence.
	FrameEscalationStop = "escalation_stop"
	// FrameStaleView reports whether the pushed view can be trusted.
	FrameStaleView = "stale_view"
	// FrameRespondResult answers a respond command.
	FrameRespondResult = "respond_result"
)

// Client-to-server frame types.
const (
	// FrameRespond submits a decision for an alert.
	FrameRespond = "respond"
	// FrameMute toggles escalation cue delivery.
	FrameMute = "mute"
)

// ServerFrame is every message the server pushes. Unused fields are omitted
// per frame type.
type ServerFrame struct {
	Type string `json:"type"`

	Alerts []*alert.Record `json:"alerts,omitempty"`

	// Stale is present on every stale_view frame, for both the stale and
	// the fresh-again notification, so clients never infer it from absence.
	Stale *bool `json:"stale,omitempty"`

	AlertID string `json:"alert_id,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// staleViewFrame builds a stale_view frame with the bit set explicitly.
func staleViewFrame(stale bool) ServerFrame {
	return ServerFrame{Type: FrameStaleView, Stale: &stale}
}

// ClientFrame is every message a client may send.
type ClientFrame struct {
	Type     string `json:"type"`
	AlertID  string `json:"alert_id,omitempty"`
	Decision string `json:"decision,omitempty"`
	Muted    bool   `json:"muted,omitempty"`
}
