package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Call attributes
	AttrCallSid        = "call.sid"
	AttrCallState      = "call.state"
	AttrCallTurns      = "call.turns"
	AttrCallOutcome    = "call.outcome"
	AttrEmotionalState = "call.emotional_state"
	AttrAlertID        = "alert.id"

	// AI/LLM attributes
	AttrLLMProvider  = "llm.provider"
	AttrLLMModel     = "llm.model"
	AttrLLMOperation = "llm.operation"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// CallAttrs creates attributes identifying a call
func CallAttrs(callSid, alertID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrCallSid, callSid),
	}
	if alertID != "" {
		attrs = append(attrs, attribute.String(AttrAlertID, alertID))
	}
	return attrs
}

// TurnAttrs describes the call after a processed turn
func TurnAttrs(state, emotionalState string, turns int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCallState, state),
		attribute.String(AttrEmotionalState, emotionalState),
		attribute.Int(AttrCallTurns, turns),
	}
}

// LLMAttrs creates attributes for LLM operations
func LLMAttrs(provider, model, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
		attribute.String(AttrLLMOperation, operation),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
