package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
	"incident-pipeline/internal/ticketing"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type statusChange struct {
	Status models.TicketStatus `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrUnsupportedEvent):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// openClawWebhook applies one callback from the agent. Duplicates answer
// 200 so the agent stops retrying them.
func (h *Handler) openClawWebhook(w http.ResponseWriter, r *http.Request) {
	var payload models.CallbackPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.tickets.HandleCallback(r.Context(), payload)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.WithError(err).WithField("event_id", payload.EventID).Error("callback failed")
		}
		msg := result.Error
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createTicket(w http.ResponseWriter, r *http.Request) {
	var in ticketing.Intake
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ticket, err := h.tickets.CreateTicket(r.Context(), in)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.log.WithError(err).Error("ticket create failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body statusChange
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ticket, err := h.tickets.ChangeStatus(r.Context(), id, body.Status)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.WithError(err).WithField("ticket", id).Error("status change failed")
			writeError(w, status, "internal error")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) pushHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb models.HeartbeatRecord
	if err := decode(r, &hb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.heartbeats.Add(hb, "http"); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (h *Handler) watchdogSummary(w http.ResponseWriter, _ *http.Request) {
	summary, ok := h.summaries.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no watchdog evaluation yet")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
