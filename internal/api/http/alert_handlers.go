package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/metrics"
	"github.com/clinicport/emergency-alerts/internal/resolver"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// RaiseAlertRequest is the body of POST /api/v1/alerts.
type RaiseAlertRequest struct {
	PatientID          string   `json:"patient_id"          validate:"required"`
	PatientName        string   `json:"patient_name"        validate:"required"`
	PatientPhone       string   `json:"patient_phone"`
	Location           string   `json:"location"`
	Severity           string   `json:"severity"            validate:"required,oneof=medical urgent critical"`
	Symptoms           []string `json:"symptoms"`
	Notes              string   `json:"notes"`
	AssignedResponders []string `json:"assigned_responders" validate:"required,min=1,dive,required"`
}

// RaiseAlertResponse carries the assigned alert id.
type RaiseAlertResponse struct {
	ID string `json:"id"`
}

// RespondRequest is the body of POST /api/v1/alerts/{id}/respond.
type RespondRequest struct {
	ResponderID string `json:"responder_id" validate:"required"`
	Decision    string `json:"decision"     validate:"required,oneof=acknowledge dismiss"`
}

// RespondResponse reports how the race came out for this caller.
type RespondResponse struct {
	Outcome string `json:"outcome"`
}

func (a *API) raiseAlert(w http.ResponseWriter, r *http.Request) {
	var req RaiseAlertRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := a.validate.Struct(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	record := &alert.Record{
		PatientID:          req.PatientID,
		PatientName:        req.PatientName,
		PatientPhone:       req.PatientPhone,
		Location:           req.Location,
		Severity:           alert.Severity(req.Severity),
		Symptoms:           req.Symptoms,
		Notes:              req.Notes,
		AssignedResponders: req.AssignedResponders,
	}

	id, err := a.store.Create(r.Context(), record)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to raise alert", err)
		return
	}

	metrics.AlertsRaised.WithLabelValues(req.Severity).Inc()
	logger.InfoKV(r.Context(), "Alert raised",
		"alert_id", id, "severity", req.Severity, "responders", len(req.AssignedResponders))

	respondJSON(r.Context(), w, http.StatusCreated, RaiseAlertResponse{ID: id})
}

func (a *API) getAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := a.store.Get(r.Context(), id)

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "Alert not found", err)
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to look up alert", err)
	default:
		respondJSON(r.Context(), w, http.StatusOK, record)
	}
}

func (a *API) respondAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RespondRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := a.validate.Struct(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	record, err := a.store.Get(r.Context(), id)

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "Alert not found", err)
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to look up alert", err)
		return
	}

	outcome, err := a.resolver.Respond(r.Context(), record, alert.Decision(req.Decision), req.ResponderID)

	switch {
	case errors.Is(err, resolver.ErrOutcomeUnknown):
		// The write may still land. The caller must re-read the alert
		// before deciding anything, never blindly retry the response.
		writeError(r.Context(), w, http.StatusBadGateway, "Response outcome unknown, re-read the alert", err)
	case errors.Is(err, resolver.ErrInvalidDecision):
		writeError(r.Context(), w, http.StatusBadRequest, "Invalid decision", err)
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "Failed to respond to alert", err)
	default:
		// Losing the race is a normal outcome, not a conflict.
		respondJSON(r.Context(), w, http.StatusOK, RespondResponse{Outcome: string(outcome)})
	}
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
