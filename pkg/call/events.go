package call

import (
	"time"

	"github.com/realtime-ai/wellness-call/pkg/session"
)

// EventType names a call lifecycle event.
type EventType string

const (
	EventCallStarted EventType = "call.started"
	EventCallTurn    EventType = "call.turn"
	EventEscalated   EventType = "call.escalated"
	EventCallEnded   EventType = "call.ended"
)

// Event describes a state change of one call.
type Event struct {
	Type           EventType              `json:"type"`
	CallSid        string                 `json:"callSid"`
	AlertID        string                 `json:"alertId,omitempty"`
	State          session.State          `json:"state"`
	EmotionalState session.EmotionalState `json:"emotionalState"`
	Turns          int                    `json:"turns"`
	Reason         Reason                 `json:"reason,omitempty"`
	At             time.Time              `json:"at"`
}

// Observer receives call events. Publish must not block.
type Observer interface {
	Publish(Event)
}

type nopObserver struct{}

func (nopObserver) Publish(Event) {}

func newEvent(t EventType, sess *session.CallSession) Event {
	return Event{
		Type:           t,
		CallSid:        sess.CallSid,
		AlertID:        sess.AlertID,
		State:          sess.State,
		EmotionalState: sess.EmotionalState,
		Turns:          sess.TurnCount(),
		At:             time.Now(),
	}
}
