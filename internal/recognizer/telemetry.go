package recognizer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/voicesteer/internal/observe"
	"github.com/MrWong99/voicesteer/internal/resilience"
)

// AttemptRecorder returns a [resilience.RouterConfig.OnAttempt] hook that
// records every engine call in m.
func AttemptRecorder(m *observe.Metrics) func(resilience.Attempt) {
	return func(a resilience.Attempt) {
		status, kind := "ok", ""
		switch {
		case a.Err == nil:
		case a.Empty():
			status = "empty"
		case errors.Is(a.Err, context.Canceled):
			return
		case errors.Is(a.Err, resilience.ErrEngineTimeout):
			status, kind = "error", "timeout"
		default:
			status, kind = "error", "engine"
		}
		m.RecordEngineAttempt(context.Background(), a.Engine, status, kind, a.Duration)
	}
}

// BreakerRecorder returns a [resilience.CircuitBreakerConfig.OnStateChange]
// hook that logs and counts transitions.
func BreakerRecorder(m *observe.Metrics) func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		level := slog.LevelInfo
		if to == resilience.StateOpen {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "circuit breaker state changed",
			"engine", name, "from", from.String(), "to", to.String())
		m.RecordBreakerTransition(context.Background(), name, to.String())
	}
}
