package recognizer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voicesteer/internal/observe"
	"github.com/MrWong99/voicesteer/internal/recognizer"
	"github.com/MrWong99/voicesteer/internal/resilience"
)

func TestAttemptRecorder_ClassifiesAttempts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatal(err)
	}
	record := recognizer.AttemptRecorder(m)

	record(resilience.Attempt{Engine: "openai", Text: "up", Duration: time.Second})
	record(resilience.Attempt{Engine: "openai", Err: fmt.Errorf("%w after 8s", resilience.ErrEngineTimeout)})
	record(resilience.Attempt{Engine: "whisper", Err: errors.New("connection refused")})
	record(resilience.Attempt{Engine: "whisper", Err: context.Canceled})

	if got := counterSum(t, reader, "voicesteer.engine.requests", "engine", "openai"); got != 2 {
		t.Errorf("openai requests = %d, want 2", got)
	}
	if got := counterSum(t, reader, "voicesteer.engine.requests", "engine", "whisper"); got != 1 {
		t.Errorf("whisper requests = %d, want 1 (cancellation not recorded)", got)
	}
	if got := counterSum(t, reader, "voicesteer.engine.errors", "kind", "timeout"); got != 1 {
		t.Errorf("timeout errors = %d, want 1", got)
	}
	if got := counterSum(t, reader, "voicesteer.engine.errors", "kind", "engine"); got != 1 {
		t.Errorf("engine errors = %d, want 1", got)
	}
}

func TestBreakerRecorder_CountsTransitions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatal(err)
	}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "deepgram",
		MaxFailures:   1,
		ResetTimeout:  time.Hour,
		OnStateChange: recognizer.BreakerRecorder(m),
	})
	_ = cb.Execute(func() error { return errors.New("boom") })

	if got := counterSum(t, reader, "voicesteer.breaker.transitions", "state", "open"); got != 1 {
		t.Errorf("open transitions = %d, want 1", got)
	}
}
