package call

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/vitals"
)

// ErrAlertNotFound is returned for unknown alert IDs.
var ErrAlertNotFound = errors.New("alert not found")

// Status is the lifecycle status shared by alerts and call results.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusCompleted Status = "completed"
)

// Reason explains why a call was terminated.
type Reason string

const (
	ReasonNormal    Reason = "normal"
	ReasonEscalated Reason = "escalated"
	ReasonTimeout   Reason = "timeout"
)

// Result records how a call ended.
type Result struct {
	Status             Status                  `json:"status"`
	Outcome            *session.EmotionalState `json:"outcome"`
	Reason             Reason                  `json:"reason,omitempty"`
	CallSid            string                  `json:"callSid,omitempty"`
	AlertID            string                  `json:"alertId,omitempty"`
	Timestamp          time.Time               `json:"timestamp"`
	ConversationLength int                     `json:"conversationLength"`
}

// AlertContext is one triggered wellness check.
type AlertContext struct {
	ID          string           `json:"id"`
	VitalData   vitals.Data      `json:"vitalData"`
	AlertType   vitals.AlertType `json:"alertType"`
	Vitals      vitals.Context   `json:"vitalsContext"`
	PhoneNumber string           `json:"phoneNumber"`
	Status      Status           `json:"status"`
	CallSid     string           `json:"callSid,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Result      *Result          `json:"result,omitempty"`
}

func (a *AlertContext) clone() *AlertContext {
	c := *a
	if a.Result != nil {
		r := *a.Result
		c.Result = &r
	}
	return &c
}

// DefaultMaxAlerts bounds how many alerts the registry remembers.
const DefaultMaxAlerts = 256

// AlertRegistry associates alerts with the calls placed for them. It also
// keeps the most recent call result for health reporting.
type AlertRegistry struct {
	mu        sync.RWMutex
	alerts    map[string]*AlertContext
	order     []string // creation order, oldest first
	byCall    map[string]string
	latestID  string
	result    *Result
	maxAlerts int
}

// NewAlertRegistry creates an empty registry.
func NewAlertRegistry() *AlertRegistry {
	return &AlertRegistry{
		alerts:    make(map[string]*AlertContext),
		byCall:    make(map[string]string),
		maxAlerts: DefaultMaxAlerts,
	}
}

// Create registers a new alert and resets the latest call result to
// initiated.
func (r *AlertRegistry) Create(data vitals.Data, alertType vitals.AlertType, phoneNumber string) *AlertContext {
	alert := &AlertContext{
		ID:          uuid.New().String(),
		VitalData:   data,
		AlertType:   alertType,
		Vitals:      vitals.BuildContext(data, alertType),
		PhoneNumber: phoneNumber,
		Status:      StatusInitiated,
		CreatedAt:   time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts[alert.ID] = alert
	r.order = append(r.order, alert.ID)
	r.latestID = alert.ID
	r.result = &Result{Status: StatusInitiated, AlertID: alert.ID, Timestamp: alert.CreatedAt}
	r.pruneLocked()

	return alert.clone()
}

// pruneLocked keeps at most maxAlerts alerts. Completed alerts are dropped
// first, then initiated alerts no call was bound to, then the oldest of the
// rest. The latest alert is always kept.
func (r *AlertRegistry) pruneLocked() {
	for _, stale := range []func(*AlertContext) bool{
		func(a *AlertContext) bool { return a.Status == StatusCompleted },
		func(a *AlertContext) bool { return a.CallSid == "" },
		func(*AlertContext) bool { return true },
	} {
		excess := len(r.order) - r.maxAlerts
		if excess <= 0 {
			return
		}
		r.dropLocked(excess, stale)
	}
}

// dropLocked removes up to n of the oldest alerts matching stale.
func (r *AlertRegistry) dropLocked(n int, stale func(*AlertContext) bool) {
	kept := r.order[:0]
	for _, id := range r.order {
		a := r.alerts[id]
		if n > 0 && id != r.latestID && stale(a) {
			delete(r.alerts, id)
			if a.CallSid != "" && r.byCall[a.CallSid] == id {
				delete(r.byCall, a.CallSid)
			}
			n--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// Bind associates a call with an alert.
func (r *AlertRegistry) Bind(alertID, callSid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[alertID]
	if !ok {
		return ErrAlertNotFound
	}
	if prev := a.CallSid; prev != "" && prev != callSid && r.byCall[prev] == alertID {
		delete(r.byCall, prev)
	}
	a.CallSid = callSid
	r.byCall[callSid] = alertID
	return nil
}

// ForCall returns the alert bound to callSid.
func (r *AlertRegistry) ForCall(callSid string) (*AlertContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCall[callSid]
	if !ok {
		return nil, false
	}
	a, ok := r.alerts[id]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// Complete records result as the latest call result and, when the call's
// alert is known, marks that alert completed.
func (r *AlertRegistry) Complete(alertID string, result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result.Status = StatusCompleted
	result.AlertID = alertID
	r.result = &result

	if a, ok := r.alerts[alertID]; ok {
		a.Status = StatusCompleted
		res := result
		a.Result = &res
	}
}

// LatestResult returns the most recent call result, or nil.
func (r *AlertRegistry) LatestResult() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.result == nil {
		return nil
	}
	res := *r.result
	return &res
}

// List returns every remembered alert, oldest first.
func (r *AlertRegistry) List() []*AlertContext {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*AlertContext, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.alerts[id].clone())
	}
	return out
}
