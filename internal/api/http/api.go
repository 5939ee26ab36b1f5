package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicport/emergency-alerts/internal/api/ws"
	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/resolver"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// Options configures the API surface.
type Options struct {
	// Store backs all alert operations.
	Store store.Store
	// Subscription tunes the per-connection responder sessions.
	Subscription config.SubscriptionConfig
	// EscalationInterval is the cadence between escalation cues.
	EscalationInterval time.Duration
}

// API routes alert coordination requests to the store and the per-connection
// responder sessions.
type API struct {
	store    store.Store
	resolver *resolver.Resolver
	validate *validator.Validate
	ws       *ws.Handler
}

var errStoreRequired = errors.New("store must be provided")

// New creates the API. Call Router to mount it.
func New(opts Options) (*API, error) {
	if opts.Store == nil {
		return nil, errStoreRequired
	}

	if opts.EscalationInterval <= 0 {
		opts.EscalationInterval = config.DefaultEscalationInterval
	}

	return &API{
		store:    opts.Store,
		resolver: resolver.New(opts.Store),
		validate: validator.New(),
		ws: ws.NewHandler(ws.Options{
			Store:              opts.Store,
			Subscription:       opts.Subscription,
			EscalationInterval: opts.EscalationInterval,
		}),
	}, nil
}

// Router builds the HTTP routing table.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/v1/alerts", a.raiseAlert).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/alerts/{id}", a.getAlert).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/alerts/{id}/respond", a.respondAlert).Methods(http.MethodPost)
	router.Handle("/api/v1/ws", a.ws).Methods(http.MethodGet)

	router.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// Close tears down the live responder sessions.
func (a *API) Close() {
	a.ws.Close()
}
