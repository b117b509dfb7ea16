// Package observe provides the observability primitives shared by the
// speakcoach service: OpenTelemetry metrics, tracing helpers, trace-aware
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed to
// Prometheus through the exporter bridge set up by [InitProvider]. A
// package-level [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all speakcoach metrics.
const meterName = "github.com/MrWong99/speakcoach"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// EvaluationCount counts finished evaluations. Attributes:
	//   mode, level, source ("text" or "audio")
	EvaluationCount metric.Int64Counter

	// EvaluationScore records every sub-score of an evaluation. Attribute:
	//   dimension ("accuracy", "pronunciation", "fluency", "completeness")
	EvaluationScore metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks reference audio synthesis latency.
	TTSDuration metric.Float64Histogram

	// ProviderRequests counts provider calls. Attributes:
	//   provider, kind, status
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls. Attributes:
	//   provider, kind
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Attributes:
	//   breaker, from, to
	CircuitTransitions metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   method, route, status
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// provider round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30,
}

// scoreBuckets covers the 0 to 100 score range with finer steps around the
// level cut points.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EvaluationCount, err = m.Int64Counter("speakcoach.evaluations",
		metric.WithDescription("Total evaluations by mode, level, and source."),
	); err != nil {
		return nil, err
	}
	if met.EvaluationScore, err = m.Float64Histogram("speakcoach.evaluation.score",
		metric.WithDescription("Distribution of evaluation sub-scores by dimension."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	if met.STTDuration, err = m.Float64Histogram("speakcoach.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("speakcoach.tts.duration",
		metric.WithDescription("Latency of reference audio synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("speakcoach.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("speakcoach.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CircuitTransitions, err = m.Int64Counter("speakcoach.circuit.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("speakcoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route, and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// EvaluationScores carries the four sub-scores recorded by
// [Metrics.RecordEvaluation].
type EvaluationScores struct {
	Accuracy      float64
	Pronunciation float64
	Fluency       float64
	Completeness  float64
}

// RecordEvaluation increments the evaluation counter and records each
// sub-score under its dimension.
func (m *Metrics) RecordEvaluation(ctx context.Context, mode, level, source string, s EvaluationScores) {
	m.EvaluationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("level", level),
			attribute.String("source", source),
		),
	)
	for _, d := range []struct {
		name  string
		value float64
	}{
		{"accuracy", s.Accuracy},
		{"pronunciation", s.Pronunciation},
		{"fluency", s.Fluency},
		{"completeness", s.Completeness},
	} {
		m.EvaluationScore.Record(ctx, d.value,
			metric.WithAttributes(attribute.String("dimension", d.name)),
		)
	}
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCircuitTransition records a circuit breaker state change.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, breaker, from, to string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}
