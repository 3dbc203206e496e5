package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/realtime-ai/wellness-call/pkg/call"
	"github.com/realtime-ai/wellness-call/pkg/telephony"
	"github.com/realtime-ai/wellness-call/pkg/vitals"
	"github.com/rs/zerolog/log"
)

// ErrMissingFields is returned when an alert request lacks vitalData or
// alertType.
var ErrMissingFields = errors.New("missing fields")

type startCallRequest struct {
	VitalData   *vitals.Data     `json:"vitalData"`
	AlertType   vitals.AlertType `json:"alertType"`
	PhoneNumber string           `json:"phoneNumber"`
}

type startCallResponse struct {
	Success       bool   `json:"success"`
	VitalsContext string `json:"vitalsContext"`
	AlertID       string `json:"alertId"`
}

type triggerRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	AlertID     string `json:"alertId"`
}

type triggerResponse struct {
	Success     bool   `json:"success"`
	CallSid     string `json:"callSid"`
	PhoneNumber string `json:"phoneNumber"`
	AlertID     string `json:"alertId,omitempty"`
	Message     string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleStartTherapeuticCall records a vital-sign alert.
func (s *WellnessServer) handleStartTherapeuticCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON", Details: err.Error()})
		return
	}
	if req.VitalData == nil || req.AlertType == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrMissingFields.Error()})
		return
	}

	alert := s.orch.Alerts().Create(*req.VitalData, req.AlertType, req.PhoneNumber)

	log.Info().
		Str("alertId", alert.ID).
		Str("alertType", string(alert.AlertType)).
		Str("concern", alert.Vitals.ConcernText).
		Msg("Vital alert received")

	writeJSON(w, http.StatusOK, startCallResponse{
		Success:       true,
		VitalsContext: alert.Vitals.ConcernText,
		AlertID:       alert.ID,
	})
}

// handleTestVitalAlert seeds a fixed high-severity alert for manual testing.
func (s *WellnessServer) handleTestVitalAlert(w http.ResponseWriter, r *http.Request) {
	data := vitals.Data{HeartRate: 120, SpO2: 88, StressLevel: 75}
	alert := s.orch.Alerts().Create(data, vitals.AlertHigh, s.config.UserNumber)

	log.Info().Str("alertId", alert.ID).Msg("Test vital alert set")

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Test vital alert set",
		"vitalsContext": alert.Vitals.ConcernText,
		"alertId":       alert.ID,
		"callContext":   alert,
	})
}

// handleTriggerCall calls the configured user number.
func (s *WellnessServer) handleTriggerCall(w http.ResponseWriter, r *http.Request) {
	s.originate(w, r, triggerRequest{})
}

// handleTriggerTherapeuticCall calls the requested number, falling back to
// the alert's number and then the configured user number.
func (s *WellnessServer) handleTriggerTherapeuticCall(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON", Details: err.Error()})
		return
	}
	s.originate(w, r, req)
}

func (s *WellnessServer) originate(w http.ResponseWriter, r *http.Request, req triggerRequest) {
	alerts := s.orch.Alerts()

	var alert *call.AlertContext
	if req.AlertID != "" {
		a, ok := alerts.Get(req.AlertID)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: call.ErrAlertNotFound.Error()})
			return
		}
		alert = a
	} else if a, ok := alerts.Latest(); ok && a.Status == call.StatusInitiated && a.CallSid == "" {
		alert = a
	}

	target := req.PhoneNumber
	if target == "" && alert != nil {
		target = alert.PhoneNumber
	}
	if target == "" {
		target = s.config.UserNumber
	}
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No phone number provided"})
		return
	}

	if s.dialer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "Failed to initiate call",
			Details: telephony.ErrNotConfigured.Error(),
		})
		return
	}

	var alertID string
	if alert != nil {
		alertID = alert.ID
	}

	callSid, err := s.dialer.Originate(r.Context(), target, s.voiceURL(alertID))
	if err != nil {
		log.Error().Err(err).Str("to", target).Msg("Failed to initiate call")
		status := http.StatusInternalServerError
		if errors.Is(err, telephony.ErrNoPhoneNumber) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: "Failed to initiate call", Details: err.Error()})
		return
	}

	if alertID != "" {
		if err := alerts.Bind(alertID, callSid); err != nil {
			log.Warn().Err(err).Str("alertId", alertID).Str("callSid", callSid).Msg("Failed to bind alert")
		}
	}

	log.Info().Str("callSid", callSid).Str("to", target).Str("alertId", alertID).Msg("Therapeutic call initiated")

	writeJSON(w, http.StatusOK, triggerResponse{
		Success:     true,
		CallSid:     callSid,
		PhoneNumber: target,
		AlertID:     alertID,
		Message:     "Therapeutic call initiated",
	})
}

// voiceURL is the webhook Twilio fetches when the call connects.
func (s *WellnessServer) voiceURL(alertID string) string {
	u := s.config.PublicURL + "/voice"
	if alertID != "" {
		u += "?" + url.Values{"alertId": {alertID}}.Encode()
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}
