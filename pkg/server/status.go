package server

import (
	"net/http"
	"time"

	"github.com/realtime-ai/wellness-call/pkg/call"
	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/rs/zerolog/log"
)

type callContextStatus struct {
	Status call.Status `json:"status"`
}

type healthResponse struct {
	Status              string             `json:"status"`
	CallResult          *call.Result       `json:"callResult"`
	ActiveConversations int                `json:"activeConversations"`
	CallContext         *callContextStatus `json:"callContext"`
	Timestamp           time.Time          `json:"timestamp"`
	Error               string             `json:"error,omitempty"`
}

// handleHealth reports the latest call result and the open session count.
func (s *WellnessServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	alerts := s.orch.Alerts()
	resp := healthResponse{
		Status:     "healthy",
		CallResult: alerts.LatestResult(),
		Timestamp:  time.Now(),
	}
	if a, ok := alerts.Latest(); ok {
		resp.CallContext = &callContextStatus{Status: a.Status}
	}

	count, err := s.orch.Store().Count(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Health check: session store unavailable")
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.ActiveConversations = count

	writeJSON(w, http.StatusOK, resp)
}

type debugResponse struct {
	Conversations  map[string][]session.Message      `json:"conversations"`
	EmotionalState map[string]session.EmotionalState `json:"emotionalState"`
	Sessions       []*session.CallSession            `json:"sessions"`
	CallContext    *call.AlertContext                `json:"callContext"`
	Alerts         []*call.AlertContext              `json:"alerts"`
	CallResult     *call.Result                      `json:"callResult"`
	Environment    map[string]string                 `json:"environment"`
}

// handleDebug dumps the in-memory state.
func (s *WellnessServer) handleDebug(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.orch.Store().List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Debug: failed to list sessions")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "session store unavailable", Details: err.Error()})
		return
	}

	alerts := s.orch.Alerts()
	resp := debugResponse{
		Conversations:  make(map[string][]session.Message, len(sessions)),
		EmotionalState: make(map[string]session.EmotionalState, len(sessions)),
		Sessions:       sessions,
		Alerts:         alerts.List(),
		CallResult:     alerts.LatestResult(),
		Environment:    s.config.Environment,
	}
	for _, sess := range sessions {
		resp.Conversations[sess.CallSid] = sess.Transcript
		resp.EmotionalState[sess.CallSid] = sess.EmotionalState
	}
	if a, ok := alerts.Latest(); ok {
		resp.CallContext = a
	}

	writeJSON(w, http.StatusOK, resp)
}
