// Package observe provides application-wide observability primitives for
// voicesteer: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicesteer metrics.
const meterName = "github.com/MrWong99/voicesteer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks how long one audio segment took to record.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks per-engine transcription latency. Use with attribute:
	//   attribute.String("engine", ...)
	STTDuration metric.Float64Histogram

	// IterationDuration tracks one full capture-to-state iteration.
	IterationDuration metric.Float64Histogram

	// MatchScore is the distribution of best similarity scores.
	MatchScore metric.Float64Histogram

	// --- Counters ---

	// Iterations counts loop iterations. Use with attribute:
	//   attribute.String("outcome", ...)
	Iterations metric.Int64Counter

	// EngineRequests counts engine calls. Use with attributes:
	//   attribute.String("engine", ...), attribute.String("status", ...)
	EngineRequests metric.Int64Counter

	// FallbackActivations counts utterances handed to a fallback engine.
	FallbackActivations metric.Int64Counter

	// DirectionChanges counts accepted direction updates. Use with attribute:
	//   attribute.String("direction", ...)
	DirectionChanges metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes: attribute.String("engine", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// --- Error counters ---

	// EngineErrors counts failed engine calls. Use with attributes:
	//   attribute.String("engine", ...), attribute.String("kind", ...)
	EngineErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// one-second segments and cloud round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5, 10,
}

// scoreBuckets covers the [0, 1] similarity range around the usual
// threshold.
var scoreBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("voicesteer.capture.duration",
		metric.WithDescription("Time spent recording one audio segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("voicesteer.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription by engine."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IterationDuration, err = m.Float64Histogram("voicesteer.iteration.duration",
		metric.WithDescription("Latency of one recognition loop iteration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchScore, err = m.Float64Histogram("voicesteer.match.score",
		metric.WithDescription("Best vocabulary similarity score per transcription."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Iterations, err = m.Int64Counter("voicesteer.iterations",
		metric.WithDescription("Total recognition loop iterations by outcome."),
	); err != nil {
		return nil, err
	}
	if met.EngineRequests, err = m.Int64Counter("voicesteer.engine.requests",
		metric.WithDescription("Total speech engine calls by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.FallbackActivations, err = m.Int64Counter("voicesteer.fallback.activations",
		metric.WithDescription("Total utterances routed to a fallback engine."),
	); err != nil {
		return nil, err
	}
	if met.DirectionChanges, err = m.Int64Counter("voicesteer.direction.changes",
		metric.WithDescription("Total accepted direction updates by new direction."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voicesteer.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes by engine and new state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.EngineErrors, err = m.Int64Counter("voicesteer.engine.errors",
		metric.WithDescription("Total speech engine errors by engine and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicesteer.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordIteration records one loop iteration with its outcome.
func (m *Metrics) RecordIteration(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Iterations.Add(ctx, 1, attrs)
	m.IterationDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordEngineAttempt records one engine call. status is "ok", "empty" or
// "error"; for errors kind narrows the cause (e.g. "timeout").
func (m *Metrics) RecordEngineAttempt(ctx context.Context, engine, status, kind string, d time.Duration) {
	m.EngineRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("status", status),
		),
	)
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("engine", engine)),
	)
	if status == "error" {
		m.EngineErrors.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("engine", engine),
				attribute.String("kind", kind),
			),
		)
	}
}

// RecordDirectionChange records an accepted direction update.
func (m *Metrics) RecordDirectionChange(ctx context.Context, direction string) {
	m.DirectionChanges.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", direction)),
	)
}

// RecordBreakerTransition records a circuit breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, engine, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("state", state),
		),
	)
}
