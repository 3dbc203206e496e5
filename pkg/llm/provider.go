// Package llm talks to the language-model provider: it generates the
// assistant's next line and classifies the caller's emotional state.
//
// Prompt construction is pure (see prompts.go); only Provider implementations
// perform network calls.
package llm

import (
	"context"
	"errors"

	"github.com/realtime-ai/wellness-call/pkg/session"
)

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Prompt is a provider-independent request.
type Prompt struct {
	System   string
	Messages []session.Message
}

// Provider completes prompts with a hosted model.
type Provider interface {
	// Name identifies the provider in logs and traces.
	Name() string
	// Model is the model name used for requests.
	Model() string
	// Complete returns the model's text answer.
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ProviderFunc adapts a function to Provider, mostly for tests.
type ProviderFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f ProviderFunc) Name() string  { return "func" }
func (f ProviderFunc) Model() string { return "func" }
func (f ProviderFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// FailureRecorder is notified when a provider call degrades to its fallback.
type FailureRecorder interface {
	ProviderFailure(ctx context.Context, operation string)
}
