package trace

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// InstrumentLLMRequest creates a span for LLM requests
func InstrumentLLMRequest(ctx context.Context, provider, model, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, "llm.request",
		trace.WithAttributes(
			LLMAttrs(provider, model, operation)...,
		),
	)
}

// InstrumentWebhook creates a span for one telephony webhook invocation
func InstrumentWebhook(ctx context.Context, name, callSid string) (context.Context, trace.Span) {
	return StartSpan(ctx, "call."+name,
		trace.WithAttributes(
			CallAttrs(callSid, "")...,
		),
	)
}
