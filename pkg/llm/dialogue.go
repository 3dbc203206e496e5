package llm

import (
	"context"

	"github.com/realtime-ai/wellness-call/pkg/session"
	"github.com/realtime-ai/wellness-call/pkg/trace"
	"github.com/rs/zerolog/log"
)

// FallbackReply is spoken when the provider cannot produce a reply.
const FallbackReply = "I understand you're speaking with me. Could you please repeat what you just said?"

// DialogueGenerator produces the assistant's next utterance.
type DialogueGenerator struct {
	provider Provider
	failures FailureRecorder
}

// NewDialogueGenerator creates a generator. failures may be nil.
func NewDialogueGenerator(provider Provider, failures FailureRecorder) *DialogueGenerator {
	return &DialogueGenerator{provider: provider, failures: failures}
}

// Reply returns the next assistant line for the conversation. Provider
// errors are logged and answered with FallbackReply; Reply never fails.
func (g *DialogueGenerator) Reply(ctx context.Context, callSid string, transcript []session.Message, concern string, state session.EmotionalState) string {
	ctx, span := trace.InstrumentLLMRequest(ctx, g.provider.Name(), g.provider.Model(), "reply")
	defer span.End()
	trace.SetAttributes(span, trace.CallAttrs(callSid, "")...)

	log.Debug().
		Str("callSid", callSid).
		Int("turns", len(transcript)).
		Str("emotionalState", string(state)).
		Msg("Requesting reply")

	reply, err := g.provider.Complete(ctx, DialoguePrompt(transcript, concern, state))
	if err != nil {
		trace.RecordError(span, err)
		trace.AddEvent(span, "reply.fallback", trace.ErrorAttrs("provider_error", err.Error())...)
		if g.failures != nil {
			g.failures.ProviderFailure(ctx, "reply")
		}
		log.Error().Err(err).Str("callSid", callSid).Str("provider", g.provider.Name()).Msg("Reply generation failed, using fallback")
		return FallbackReply
	}

	log.Info().Str("callSid", callSid).Str("reply", truncateForLog(reply, 100)).Msg("LLM replied")
	return reply
}

// truncateForLog truncates text for logging
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
