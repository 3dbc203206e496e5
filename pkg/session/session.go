// Package session holds the per-call conversation state and the stores that
// keep it between webhook invocations.
package session

import (
	"time"
)

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EmotionalState is the classifier's label for the caller.
type EmotionalState string

const (
	SeverelyDepressed EmotionalState = "SEVERELY_DEPRESSED"
	MildlyDepressed   EmotionalState = "MILDLY_DEPRESSED"
	Neutral           EmotionalState = "NEUTRAL"
	Positive          EmotionalState = "POSITIVE"
)

// EmotionalStates lists every recognized label.
var EmotionalStates = []EmotionalState{SeverelyDepressed, MildlyDepressed, Neutral, Positive}

// ParseEmotionalState reports whether s is exactly one of the recognized labels.
func ParseEmotionalState(s string) (EmotionalState, bool) {
	for _, st := range EmotionalStates {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// State is the call's position in the conversation state machine.
type State string

const (
	StateGreeting       State = "GREETING"
	StateAwaitingSpeech State = "AWAITING_SPEECH"
	StateProcessingTurn State = "PROCESSING_TURN"
	StateTerminated     State = "TERMINATED"
)

// CallSession is the mutable state of one open phone call.
type CallSession struct {
	CallSid        string         `json:"callSid"`
	AlertID        string         `json:"alertId,omitempty"`
	State          State          `json:"state"`
	Transcript     []Message      `json:"transcript"`
	EmotionalState EmotionalState `json:"emotionalState"`
	// TimeoutRetried is set once the single "are you still there" retry
	// has been spent.
	TimeoutRetried bool      `json:"timeoutRetried"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// New creates a session in the greeting state with a neutral assessment.
func New(callSid string) *CallSession {
	now := time.Now()
	return &CallSession{
		CallSid:        callSid,
		State:          StateGreeting,
		Transcript:     make([]Message, 0),
		EmotionalState: Neutral,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TurnCount is the number of transcript entries.
func (s *CallSession) TurnCount() int {
	return len(s.Transcript)
}

// Append adds a transcript entry in conversation order.
func (s *CallSession) Append(role Role, content string) {
	s.Transcript = append(s.Transcript, Message{Role: role, Content: content})
	s.UpdatedAt = time.Now()
}

// LastUserMessage returns the most recent user utterance.
func (s *CallSession) LastUserMessage() (string, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleUser {
			return s.Transcript[i].Content, true
		}
	}
	return "", false
}

// Clone returns a deep copy, so stores never share transcript slices with
// callers.
func (s *CallSession) Clone() *CallSession {
	c := *s
	c.Transcript = make([]Message, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return &c
}
