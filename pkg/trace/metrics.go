package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service counters. Instruments come from the global meter
// provider installed by Initialize; create Metrics after Initialize.
type Metrics struct {
	callsStarted     metric.Int64Counter
	callsTerminated  metric.Int64Counter
	providerFailures metric.Int64Counter
}

// NewMetrics creates the counters.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(TracerName)

	started, err := meter.Int64Counter("wellness.calls.started",
		metric.WithDescription("Calls that reached the greeting"))
	if err != nil {
		return nil, err
	}
	terminated, err := meter.Int64Counter("wellness.calls.terminated",
		metric.WithDescription("Calls terminated, by outcome"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("wellness.provider.failures",
		metric.WithDescription("Degraded LLM provider calls, by operation"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		callsStarted:     started,
		callsTerminated:  terminated,
		providerFailures: failures,
	}, nil
}

// CallStarted counts a new call.
func (m *Metrics) CallStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.callsStarted.Add(ctx, 1)
}

// CallTerminated counts a finished call.
func (m *Metrics) CallTerminated(ctx context.Context, outcome, emotionalState string) {
	if m == nil {
		return
	}
	m.callsTerminated.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCallOutcome, outcome),
		attribute.String(AttrEmotionalState, emotionalState),
	))
}

// ProviderFailure counts a provider call that fell back to its default.
func (m *Metrics) ProviderFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.providerFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrLLMOperation, operation),
	))
}
