package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/trace"
	"github.com/rs/zerolog/log"
)

// EmotionalClassifier labels the caller's latest utterance.
type EmotionalClassifier struct {
	provider Provider
	failures FailureRecorder
}

// NewEmotionalClassifier creates a classifier. failures may be nil.
func NewEmotionalClassifier(provider Provider, failures FailureRecorder) *EmotionalClassifier {
	return &EmotionalClassifier{provider: provider, failures: failures}
}

// Assess classifies the most recent user utterance in transcript. Without
// one the current state is returned unchanged. Any provider failure or
// unrecognized answer yields session.Neutral.
func (c *EmotionalClassifier) Assess(ctx context.Context, callSid string, transcript []session.Message, current session.EmotionalState) session.EmotionalState {
	var last string
	found := false
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == session.RoleUser {
			last, found = transcript[i].Content, true
			break
		}
	}
	if !found {
		return current
	}
	return c.Classify(ctx, callSid, last)
}

// Classify labels one utterance.
func (c *EmotionalClassifier) Classify(ctx context.Context, callSid, utterance string) session.EmotionalState {
	ctx, span := trace.InstrumentLLMRequest(ctx, c.provider.Name(), c.provider.Model(), "classify")
	defer span.End()
	trace.SetAttributes(span, trace.CallAttrs(callSid, "")...)

	answer, err := c.provider.Complete(ctx, ClassificationPrompt(utterance))
	if err != nil {
		trace.RecordError(span, err)
		trace.AddEvent(span, "classify.fallback", trace.ErrorAttrs("provider_error", err.Error())...)
		c.recordFailure(ctx)
		log.Error().Err(err).Str("callSid", callSid).Msg("Emotional state classification failed, forcing NEUTRAL")
		return session.Neutral
	}

	state, ok := session.ParseEmotionalState(strings.TrimSpace(answer))
	if !ok {
		trace.RecordError(span, fmt.Errorf("unrecognized label %q", answer))
		trace.AddEvent(span, "classify.fallback", trace.ErrorAttrs("unrecognized_label", truncateForLog(answer, 60))...)
		c.recordFailure(ctx)
		log.Warn().Str("callSid", callSid).Str("answer", truncateForLog(answer, 60)).Msg("Unrecognized emotional state, forcing NEUTRAL")
		return session.Neutral
	}

	log.Info().Str("callSid", callSid).Str("emotionalState", string(state)).Msg("Updated emotional state")
	return state
}

func (c *EmotionalClassifier) recordFailure(ctx context.Context) {
	if c.failures != nil {
		c.failures.ProviderFailure(ctx, "classify")
	}
}
