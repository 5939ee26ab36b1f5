package ws

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/resolver"
	"github.com/clinicport/emergency-alerts/internal/session"
)

// conn is one responder's WebSocket connection. Session hooks enqueue
// frames from their own goroutines; writePump is the only writer on the
// socket.
type conn struct {
	socket *websocket.Conn
	send   chan ServerFrame
	cancel context.CancelFunc
}

// enqueue hands a frame to the write pump without blocking the session. A
// peer that stopped draining its buffer is cut off, it can reconnect for a
// fresh view.
func (c *conn) enqueue(frame ServerFrame) {
	select {
	case c.send <- frame:
	default:
		c.cancel()
	}
}

// writePump serializes queued frames onto the socket and keeps the peer
// alive with pings.
func (c *conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))

			return
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.socket.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes command frames until the peer goes away.
func (c *conn) readPump(ctx context.Context, sess *session.Session) {
	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame

		if err := c.socket.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WarnKV(ctx, "WebSocket read failed", "error", err)
			}

			return
		}

		switch frame.Type {
		case FrameRespond:
			c.handleRespond(ctx, sess, frame)
		case FrameMute:
			sess.SetMuted(frame.Muted)
		default:
			logger.WarnKV(ctx, "Unknown command frame", "type", frame.Type)
		}
	}
}

// handleRespond executes a decision and reports the outcome back on the
// same connection.
func (c *conn) handleRespond(ctx context.Context, sess *session.Session, frame ClientFrame) {
	outcome, err := sess.Respond(ctx, frame.AlertID, alert.Decision(frame.Decision))

	result := ServerFrame{
		Type:    FrameRespondResult,
		AlertID: frame.AlertID,
		Outcome: string(outcome),
	}

	if err != nil {
		logger.WarnKV(ctx, "Respond command failed",
			"alert_id", frame.AlertID, "decision", frame.Decision, "error", err)

		result.Outcome = ""
		result.Error = publicError(err)
	}

	c.enqueue(result)
}

// publicError maps internal errors onto peer-safe strings.
func publicError(err error) string {
	switch {
	case errors.Is(err, resolver.ErrOutcomeUnknown):
		return "outcome unknown, re-read the alert"
	case errors.Is(err, resolver.ErrInvalidDecision):
		return "invalid decision"
	default:
		return "respond failed"
	}
}
