package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// DefaultEngineTimeout bounds a single engine attempt.
const DefaultEngineTimeout = 8 * time.Second

// ErrEngineTimeout marks an attempt that did not finish within the router's
// per-engine timeout.
var ErrEngineTimeout = errors.New("engine timed out")

// errEmptyResult turns "nothing recognised" into a failover trigger without
// counting against the engine's breaker.
var errEmptyResult = errors.New("engine returned no text")

// Attempt describes one engine call made by a [Router].
type Attempt struct {
	Engine   string
	Fallback bool
	Duration time.Duration
	Text     string // normalised
	Err      error  // nil for a non-empty result
}

// Empty reports whether the attempt finished without error but produced no
// text.
func (a Attempt) Empty() bool { return errors.Is(a.Err, errEmptyResult) }

// RouterConfig tunes a [Router].
type RouterConfig struct {
	// EngineTimeout is applied to every attempt. Default: 8s.
	EngineTimeout time.Duration

	// CircuitBreaker is the template for each engine's breaker. Its
	// IsFailure classifier, if any, is consulted after empty results have
	// been filtered out.
	CircuitBreaker CircuitBreakerConfig

	// OnAttempt, if set, is called synchronously after every engine call.
	OnAttempt func(Attempt)
}

// Router transcribes an utterance with a primary engine and, when the
// primary fails or hears nothing, with the fallback engines in order. No
// engine is called more than once per utterance.
type Router struct {
	group     *FallbackGroup[stt.Engine]
	primary   string
	timeout   time.Duration
	onAttempt func(Attempt)
}

// NewRouter creates a Router around primary.
func NewRouter(primary stt.Engine, primaryName string, cfg RouterConfig) *Router {
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = DefaultEngineTimeout
	}
	cbCfg := cfg.CircuitBreaker
	classify := cbCfg.IsFailure
	if classify == nil {
		classify = CountsAsFailure
	}
	cbCfg.IsFailure = func(err error) bool {
		return !errors.Is(err, errEmptyResult) && classify(err)
	}
	return &Router{
		group:     NewFallbackGroup(primary, primaryName, FallbackConfig{CircuitBreaker: cbCfg}),
		primary:   primaryName,
		timeout:   cfg.EngineTimeout,
		onAttempt: cfg.OnAttempt,
	}
}

// AddFallback registers an engine to try after the primary.
func (r *Router) AddFallback(name string, e stt.Engine) {
	r.group.AddFallback(name, e)
}

// Breakers returns the per-engine circuit breakers in try order.
func (r *Router) Breakers() []*CircuitBreaker {
	entries := r.group.Entries()
	out := make([]*CircuitBreaker, len(entries))
	for i, e := range entries {
		out[i] = e.Breaker
	}
	return out
}

// Transcribe returns the first non-empty normalised transcription. It
// returns an error wrapping [stt.ErrNoTranscription] when every engine failed,
// returned nothing or was skipped by an open breaker, and ctx.Err() when ctx
// was cancelled.
func (r *Router) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcription, error) {
	res, err := ExecuteWithResult(r.group, func(name string, e stt.Engine) (stt.Transcription, error) {
		if err := ctx.Err(); err != nil {
			return stt.Transcription{}, err
		}
		return r.attempt(ctx, name, e, u)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stt.Transcription{}, ctxErr
		}
		return stt.Transcription{}, fmt.Errorf("%w: %w", stt.ErrNoTranscription, err)
	}
	return res, nil
}

func (r *Router) attempt(ctx context.Context, name string, e stt.Engine, u stt.Utterance) (stt.Transcription, error) {
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := safeTranscribe(actx, e, u)
	elapsed := time.Since(start)

	text := stt.Normalize(raw)
	switch {
	case err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s: %w", ErrEngineTimeout, r.timeout, err)
	case err == nil && text == "":
		err = errEmptyResult
	}

	a := Attempt{
		Engine:   name,
		Fallback: name != r.primary,
		Duration: elapsed,
		Text:     text,
		Err:      err,
	}
	switch {
	case a.Empty():
		slog.Debug("engine heard nothing", "engine", name, "duration", elapsed)
	case err != nil && ctx.Err() == nil:
		slog.Warn("transcription engine failed", "engine", name, "duration", elapsed, "error", err)
	}
	if r.onAttempt != nil {
		r.onAttempt(a)
	}
	if err != nil {
		return stt.Transcription{}, err
	}
	return stt.Transcription{Text: text, Engine: name, Fallback: a.Fallback}, nil
}

// safeTranscribe converts an engine panic into an error so one misbehaving
// backend cannot take the loop down.
func safeTranscribe(ctx context.Context, e stt.Engine, u stt.Utterance) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("engine panicked: %v", p)
		}
	}()
	return e.Transcribe(ctx, u)
}
