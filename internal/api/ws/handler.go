package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/session"
	"github.com/clinicport/emergency-alerts/internal/store"
)

const (
	// writeWait bounds a single frame write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long the peer has to answer a ping.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound command frames.
	maxMessageSize = 4096
	// sendBuffer holds frames queued for one peer. A full buffer means the
	// peer stopped reading, and the connection is dropped.
	sendBuffer = 32
)

// Options configures the WebSocket endpoint.
type Options struct {
	// Store backs the per-connection responder sessions.
	Store store.Store
	// Subscription tunes each session's reconnect behaviour.
	Subscription config.SubscriptionConfig
	// EscalationInterval is the cadence between escalation cues.
	EscalationInterval time.Duration
}

// Handler upgrades each request to a WebSocket connection running one
// responder session for its lifetime.
type Handler struct {
	opts     Options
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*conn]context.CancelFunc
	closed bool
}

// NewHandler creates the endpoint handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Responder UIs are served from other origins than the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*conn]context.CancelFunc),
	}
}

// ServeHTTP runs one responder session over the upgraded connection and
// returns when the peer disconnects or the handler closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	responderID := r.URL.Query().Get("responder_id")
	if responderID == "" {
		http.Error(w, "responder_id query parameter is required", http.StatusBadRequest)
		return
	}

	ctx := logger.WithFields(r.Context(), "responder_id", responderID, "remote_addr", r.RemoteAddr)

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the peer.
		logger.WarnKV(ctx, "WebSocket upgrade failed", "error", err)
		return
	}

	// The session must outlive the request context: closing the connection,
	// not finishing the handler, ends it.
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c := &conn{socket: socket, send: make(chan ServerFrame, sendBuffer), cancel: cancel}

	sess, err := session.New(session.Options{
		Store:              h.opts.Store,
		ResponderID:        responderID,
		Subscription:       h.opts.Subscription,
		EscalationInterval: h.opts.EscalationInterval,
		Hooks: session.Hooks{
			OnAlertSet: func(alerts []*alert.Record) {
				c.enqueue(ServerFrame{Type: FrameAlertSet, Alerts: alerts})
			},
			OnEscalationTick: func() {
				c.enqueue(ServerFrame{Type: FrameEscalationTick})
			},
			OnEscalationStop: func() {
				c.enqueue(ServerFrame{Type: FrameEscalationStop})
			},
			OnStaleView: func() {
				c.enqueue(staleViewFrame(true))
			},
			OnViewFresh: func() {
				c.enqueue(staleViewFrame(false))
			},
		},
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to start responder session", "error", err)
		_ = socket.Close()
		cancel()

		return
	}

	if !h.register(c, cancel) {
		_ = socket.Close()
		cancel()

		return
	}

	defer h.unregister(c)
	defer cancel()

	logger.InfoKV(ctx, "Responder connected")
	defer logger.InfoKV(ctx, "Responder disconnected")

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		sess.Run(sessCtx)
	}()

	go func() {
		defer wg.Done()

		c.writePump(sessCtx)
	}()

	c.readPump(sessCtx, sess)
	cancel()
	wg.Wait()
}

// Close drops every live connection and refuses new ones.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	cancels := make([]context.CancelFunc, 0, len(h.conns))

	for _, cancel := range h.conns {
		cancels = append(cancels, cancel)
	}
	h.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (h *Handler) register(c *conn, cancel context.CancelFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	h.conns[c] = cancel

	return true
}

func (h *Handler) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c)
}
