package server

import (
	"net/http"

	"github.com/realtime-ai/wellness-call/pkg/twiml"
	"github.com/rs/zerolog/log"
)

// handleVoice answers the call-connected webhook with the greeting.
func (s *WellnessServer) handleVoice(w http.ResponseWriter, r *http.Request) {
	callSid, ok := webhookCallSid(w, r)
	if !ok {
		return
	}

	resp, err := s.orch.StartCall(r.Context(), callSid, r.URL.Query().Get("alertId"))
	if err != nil {
		log.Error().Err(err).Str("callSid", callSid).Msg("Failed to start call")
		resp = s.orch.TroubleResponse()
	}
	writeTwiML(w, resp)
}

// handleProcessSpeech runs one turn on the caller's transcribed speech.
func (s *WellnessServer) handleProcessSpeech(w http.ResponseWriter, r *http.Request) {
	callSid, ok := webhookCallSid(w, r)
	if !ok {
		return
	}

	resp, err := s.orch.ProcessSpeech(r.Context(), callSid, r.FormValue("SpeechResult"))
	if err != nil {
		log.Error().Err(err).Str("callSid", callSid).Msg("Error processing speech")
		resp = s.orch.TroubleResponse()
	}
	writeTwiML(w, resp)
}

// handleVoiceTimeout runs when a gather window elapses without speech.
func (s *WellnessServer) handleVoiceTimeout(w http.ResponseWriter, r *http.Request) {
	callSid, ok := webhookCallSid(w, r)
	if !ok {
		return
	}

	resp, err := s.orch.HandleTimeout(r.Context(), callSid)
	if err != nil {
		log.Error().Err(err).Str("callSid", callSid).Msg("Error handling timeout")
		resp = s.orch.TroubleResponse()
	}
	writeTwiML(w, resp)
}

// webhookCallSid parses the Twilio form and returns CallSid, answering 400
// when it is missing.
func webhookCallSid(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return "", false
	}
	callSid := r.FormValue("CallSid")
	if callSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return "", false
	}
	return callSid, true
}

func writeTwiML(w http.ResponseWriter, resp *twiml.Response) {
	doc, err := twiml.Render(resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render TwiML")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", twiml.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
