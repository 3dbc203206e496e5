// Package call implements the wellness-call conversation state machine.
//
// Every Twilio webhook is an independent request. The Orchestrator loads the
// call's session, applies one transition, writes the session back (or removes
// it when the call ends) and returns the TwiML decision to speak:
//
//	GREETING ──start──▶ AWAITING_SPEECH ──speech──▶ PROCESSING_TURN
//	                        ▲    │                       │
//	                        │    └──timeout (once)──┐    ├─ continue ─▶ AWAITING_SPEECH
//	                        └───────────────────────┘    └─ end/escalate ─▶ TERMINATED
//
// Work on one call is serialized with a per-call lock; different calls never
// wait on each other, including while a turn waits on the LLM provider.
package call

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/realtime-ai/wellness-call/pkg/intent"
	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/trace"
	"github.com/realtime-ai/wellness-call/pkg/twiml"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Spoken lines.
const (
	GreetingText       = "Hi, this is Dr. Sarah calling for a wellness check. How are you feeling right now?"
	GreetingPromptText = "Please tell me how you're doing today."
	NoSpeechText       = "I didn't catch that. Could you please tell me how you're feeling?"
	GoodbyeText        = "I'm glad we could talk today. Please take care of yourself, and don't hesitate to reach out if you need support. Goodbye!"
	StillThereText     = "I haven't heard from you in a while. Are you still there?"
	StillTherePrompt   = "Please let me know if you're okay."
	CheckBackLaterText = "I'll check back with you later. Please take care of yourself, and remember that support is available if you need it."
	TroubleText        = "I'm having trouble processing that. Let me try again. How are you feeling today?"
	crisisTemplate     = "I'm concerned about what you've shared. Please consider calling %s, the Suicide and Crisis Lifeline, or go to your nearest emergency room. You don't have to go through this alone."
)

// Replier generates the assistant's next line. It must not fail.
type Replier interface {
	Reply(ctx context.Context, callSid string, transcript []session.Message, concern string, state session.EmotionalState) string
}

// Assessor classifies the latest user utterance. It must not fail.
type Assessor interface {
	Assess(ctx context.Context, callSid string, transcript []session.Message, current session.EmotionalState) session.EmotionalState
}

// Config holds the conversation knobs.
type Config struct {
	Voice    string
	Language string
	// MaxTranscriptEntries ends the call normally once reached.
	MaxTranscriptEntries int
	SpeechTimeout        time.Duration
	RetryTimeout         time.Duration
	CrisisHotline        string
	// Webhook paths the rendered TwiML points back to.
	SpeechAction  string
	TimeoutAction string
}

// DefaultConfig returns the standard conversation settings.
func DefaultConfig() Config {
	return Config{
		Voice:                "Polly.Joanna",
		Language:             "en-US",
		MaxTranscriptEntries: 12,
		SpeechTimeout:        15 * time.Second,
		RetryTimeout:         10 * time.Second,
		CrisisHotline:        "988",
		SpeechAction:         "/process-speech",
		TimeoutAction:        "/voice-timeout",
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDetectors replaces the doing-fine and crisis detectors.
func WithDetectors(doingFine, crisis intent.Detector) Option {
	return func(o *Orchestrator) {
		o.doingFine = doingFine
		o.crisis = crisis
	}
}

// WithObserver publishes call events to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithMetrics records call counters.
func WithMetrics(m *trace.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator drives the per-call state machine.
type Orchestrator struct {
	config    Config
	store     session.Store
	locker    *session.KeyedLocker
	alerts    *AlertRegistry
	replier   Replier
	assessor  Assessor
	doingFine intent.Detector
	crisis    intent.Detector
	observer  Observer
	metrics   *trace.Metrics
}

// NewOrchestrator creates an orchestrator. Zero config fields take their
// DefaultConfig values.
func NewOrchestrator(config Config, store session.Store, alerts *AlertRegistry, replier Replier, assessor Assessor, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if config.Voice == "" {
		config.Voice = def.Voice
	}
	if config.Language == "" {
		config.Language = def.Language
	}
	if config.MaxTranscriptEntries == 0 {
		config.MaxTranscriptEntries = def.MaxTranscriptEntries
	}
	if config.SpeechTimeout == 0 {
		config.SpeechTimeout = def.SpeechTimeout
	}
	if config.RetryTimeout == 0 {
		config.RetryTimeout = def.RetryTimeout
	}
	if config.CrisisHotline == "" {
		config.CrisisHotline = def.CrisisHotline
	}
	if config.SpeechAction == "" {
		config.SpeechAction = def.SpeechAction
	}
	if config.TimeoutAction == "" {
		config.TimeoutAction = def.TimeoutAction
	}

	o := &Orchestrator{
		config:    config,
		store:     store,
		locker:    session.NewKeyedLocker(),
		alerts:    alerts,
		replier:   replier,
		assessor:  assessor,
		doingFine: intent.DoingFine(),
		crisis:    intent.Crisis(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Alerts returns the alert registry.
func (o *Orchestrator) Alerts() *AlertRegistry {
	return o.alerts
}

// Store returns the session store.
func (o *Orchestrator) Store() session.Store {
	return o.store
}

// StartCall handles the first webhook of a call: it creates the session if
// needed, associates the call with its alert and greets the caller.
// alertID may be empty.
func (o *Orchestrator) StartCall(ctx context.Context, callSid, alertID string) (*twiml.Response, error) {
	ctx, span := trace.InstrumentWebhook(ctx, "voice", callSid)
	defer span.End()

	unlock := o.locker.Lock(callSid)
	defer unlock()

	sess, created, err := o.loadOrCreate(ctx, callSid)
	if err != nil {
		trace.RecordError(span, err)
		return nil, err
	}

	if sess.AlertID == "" {
		sess.AlertID = o.resolveAlert(callSid, alertID)
	}
	trace.SetAttributes(span, trace.CallAttrs(callSid, sess.AlertID)...)

	sess.State = session.StateAwaitingSpeech
	if err := o.store.Save(ctx, sess); err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("save session %s: %w", callSid, err)
	}

	if created {
		o.metrics.CallStarted(ctx)
		o.observer.Publish(newEvent(EventCallStarted, sess))
	}
	log.Info().Str("callSid", callSid).Str("alertId", sess.AlertID).Bool("created", created).Msg("Call started")

	return o.listen(o.config.SpeechTimeout, GreetingPromptText, GreetingText), nil
}

// resolveAlert picks the alert for a new call: an explicit ID, then a binding
// made at origination, then the most recent alert still in progress.
func (o *Orchestrator) resolveAlert(callSid, alertID string) string {
	if alertID != "" {
		if err := o.alerts.Bind(alertID, callSid); err == nil {
			return alertID
		}
		log.Warn().Str("callSid", callSid).Str("alertId", alertID).Msg("Unknown alert on voice webhook")
	}
	if a, ok := o.alerts.ForCall(callSid); ok {
		return a.ID
	}
	if a, ok := o.alerts.Latest(); ok && a.Status == StatusInitiated && a.CallSid == "" {
		if err := o.alerts.Bind(a.ID, callSid); err == nil {
			return a.ID
		}
	}
	return ""
}

// ProcessSpeech runs one conversation turn for the caller's transcribed
// speech and decides whether to continue, end or escalate.
func (o *Orchestrator) ProcessSpeech(ctx context.Context, callSid, speech string) (*twiml.Response, error) {
	ctx, span := trace.InstrumentWebhook(ctx, "process_speech", callSid)
	defer span.End()

	unlock := o.locker.Lock(callSid)
	defer unlock()

	sess, created, err := o.loadOrCreate(ctx, callSid)
	if err != nil {
		trace.RecordError(span, err)
		return nil, err
	}
	if created {
		sess.AlertID = o.resolveAlert(callSid, "")
	}
	trace.SetAttributes(span, trace.CallAttrs(callSid, sess.AlertID)...)

	speech = strings.TrimSpace(speech)
	if speech == "" {
		log.Info().Str("callSid", callSid).Msg("No speech detected, prompting again")
		sess.State = session.StateAwaitingSpeech
		if err := o.store.Save(ctx, sess); err != nil {
			trace.RecordError(span, err)
			return nil, fmt.Errorf("save session %s: %w", callSid, err)
		}
		return o.listen(o.config.SpeechTimeout, "", NoSpeechText), nil
	}

	log.Info().Str("callSid", callSid).Str("speech", speech).Msg("Processing speech")

	sess.State = session.StateProcessingTurn
	sess.Append(session.RoleUser, speech)
	reply, state := o.runTurn(ctx, sess)
	sess.Append(session.RoleAssistant, reply)
	sess.EmotionalState = state

	trace.AddEvent(span, "turn.processed",
		trace.TurnAttrs(string(sess.State), string(sess.EmotionalState), sess.TurnCount())...)

	if o.doingFine.Match(speech) || sess.TurnCount() >= o.config.MaxTranscriptEntries {
		return o.finish(ctx, sess, ReasonNormal, reply, GoodbyeText), nil
	}

	if sess.EmotionalState == session.SeverelyDepressed || o.crisis.Match(speech) {
		o.observer.Publish(newEvent(EventEscalated, sess))
		log.Warn().Str("callSid", callSid).Str("emotionalState", string(sess.EmotionalState)).
			Msg(trace.LogWithTrace(ctx, "Escalating to crisis resources"))
		return o.finish(ctx, sess, ReasonEscalated, reply, o.crisisText()), nil
	}

	sess.State = session.StateAwaitingSpeech
	if err := o.store.Save(ctx, sess); err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("save session %s: %w", callSid, err)
	}
	o.observer.Publish(newEvent(EventCallTurn, sess))

	return o.listen(o.config.SpeechTimeout, "", reply), nil
}

// runTurn asks for the reply and the emotional assessment concurrently. The
// reply sees the assessment from before this turn; the assessment looks only
// at the utterance just appended.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.CallSession) (string, session.EmotionalState) {
	transcript := make([]session.Message, len(sess.Transcript))
	copy(transcript, sess.Transcript)
	current := sess.EmotionalState
	concern := o.concernFor(sess.AlertID)

	var (
		reply string
		state session.EmotionalState
	)
	// Reply and Assess degrade to their defaults instead of failing, so the
	// group only joins the two calls and never reports an error.
	var g errgroup.Group
	g.Go(func() error {
		reply = o.replier.Reply(ctx, sess.CallSid, transcript, concern, current)
		return nil
	})
	g.Go(func() error {
		state = o.assessor.Assess(ctx, sess.CallSid, transcript, current)
		return nil
	})
	_ = g.Wait()

	return reply, state
}

func (o *Orchestrator) concernFor(alertID string) string {
	if alertID == "" {
		return ""
	}
	a, ok := o.alerts.Get(alertID)
	if !ok {
		return ""
	}
	return a.Vitals.ConcernText
}

// HandleTimeout runs when a speech window elapses without a result. The
// first timeout asks once more with the shorter retry window; the second
// ends the call.
func (o *Orchestrator) HandleTimeout(ctx context.Context, callSid string) (*twiml.Response, error) {
	ctx, span := trace.InstrumentWebhook(ctx, "timeout", callSid)
	defer span.End()

	unlock := o.locker.Lock(callSid)
	defer unlock()

	sess, created, err := o.loadOrCreate(ctx, callSid)
	if err != nil {
		trace.RecordError(span, err)
		return nil, err
	}
	if created {
		sess.AlertID = o.resolveAlert(callSid, "")
	}

	if sess.TimeoutRetried {
		log.Info().Str("callSid", callSid).Msg("No response after retry, ending call")
		return o.finish(ctx, sess, ReasonTimeout, CheckBackLaterText), nil
	}

	log.Info().Str("callSid", callSid).Msg("User didn't respond, checking in")
	sess.TimeoutRetried = true
	sess.State = session.StateAwaitingSpeech
	if err := o.store.Save(ctx, sess); err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("save session %s: %w", callSid, err)
	}
	return o.listen(o.config.RetryTimeout, StillTherePrompt, StillThereText), nil
}

// Terminate ends a call outside the webhook flow. Unknown calls are a no-op.
func (o *Orchestrator) Terminate(ctx context.Context, callSid string, reason Reason) error {
	unlock := o.locker.Lock(callSid)
	defer unlock()

	sess, ok, err := o.store.Get(ctx, callSid)
	if err != nil {
		return fmt.Errorf("load session %s: %w", callSid, err)
	}
	if !ok {
		log.Debug().Str("callSid", callSid).Msg("Terminate on unknown call ignored")
		return nil
	}
	return o.terminate(ctx, sess, reason)
}

// finish terminates the session and returns the closing response. A failure
// to remove the session is logged; the caller still hears the goodbye.
func (o *Orchestrator) finish(ctx context.Context, sess *session.CallSession, reason Reason, says ...string) *twiml.Response {
	if err := o.terminate(ctx, sess, reason); err != nil {
		log.Error().Err(err).Str("callSid", sess.CallSid).Msg("Failed to remove terminated session")
	}
	return &twiml.Response{
		Voice:  o.config.Voice,
		Says:   says,
		Hangup: true,
	}
}

// terminate completes the alert, records the result and removes the
// session. Must be called with the call's lock held.
func (o *Orchestrator) terminate(ctx context.Context, sess *session.CallSession, reason Reason) error {
	sess.State = session.StateTerminated
	outcome := sess.EmotionalState
	if outcome == "" {
		outcome = session.Neutral
	}

	o.alerts.Complete(sess.AlertID, Result{
		Outcome:            &outcome,
		Reason:             reason,
		CallSid:            sess.CallSid,
		Timestamp:          time.Now(),
		ConversationLength: sess.TurnCount(),
	})

	ev := newEvent(EventCallEnded, sess)
	ev.Reason = reason
	o.observer.Publish(ev)
	o.metrics.CallTerminated(ctx, string(reason), string(outcome))

	log.Info().
		Str("callSid", sess.CallSid).
		Str("reason", string(reason)).
		Str("outcome", string(outcome)).
		Int("conversationLength", sess.TurnCount()).
		Str("traceId", trace.TraceID(ctx)).
		Msg("Call ended")

	if err := o.store.Delete(ctx, sess.CallSid); err != nil {
		return fmt.Errorf("delete session %s: %w", sess.CallSid, err)
	}
	return nil
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, callSid string) (*session.CallSession, bool, error) {
	sess, ok, err := o.store.Get(ctx, callSid)
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", callSid, err)
	}
	if ok {
		return sess, false, nil
	}
	return session.New(callSid), true, nil
}

// listen speaks says and then gathers speech for window.
func (o *Orchestrator) listen(window time.Duration, prompt string, says ...string) *twiml.Response {
	return &twiml.Response{
		Voice: o.config.Voice,
		Says:  says,
		Gather: &twiml.Gather{
			Timeout:  window,
			Action:   o.config.SpeechAction,
			Prompt:   prompt,
			Language: o.config.Language,
		},
		Redirect: o.config.TimeoutAction,
	}
}

// TroubleResponse is spoken when a webhook cannot be processed; it keeps the
// call listening.
func (o *Orchestrator) TroubleResponse() *twiml.Response {
	return o.listen(o.config.SpeechTimeout, "", TroubleText)
}

func (o *Orchestrator) crisisText() string {
	return fmt.Sprintf(crisisTemplate, o.config.CrisisHotline)
}
