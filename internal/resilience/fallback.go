package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-entry circuit breaker created for each
// value in a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// Entry is one member of a [FallbackGroup].
type Entry[T any] struct {
	Name    string
	Value   T
	Breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback values of the same
// type. When the primary fails (or its circuit breaker is open) the next
// healthy fallback is tried in registration order. Every entry is tried at
// most once per call.
//
// Entries must be registered before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []Entry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a fallback value. Fallbacks are tried in the order they
// are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, Entry[T]{
		Name:    name,
		Value:   fallback,
		Breaker: NewCircuitBreaker(cbCfg),
	})
}

// Entries returns the registered entries in try order.
func (fg *FallbackGroup[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(fg.entries))
	copy(out, fg.entries)
	return out
}

// Execute tries fn against each entry in order until one succeeds.
// Circuit-breaker-open entries are skipped. Returns [ErrAllFailed] joined
// with the last error if every entry fails.
func (fg *FallbackGroup[T]) Execute(fn func(name string, v T) error) error {
	_, err := ExecuteWithResult(fg, func(name string, v T) (struct{}, error) {
		return struct{}{}, fn(name, v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one succeeds,
// returning both the result value and error. This is a package-level function
// because Go does not support method-level type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(name string, v T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.Breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.Name, entry.Value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.Name)
		} else {
			slog.Debug("provider failed, trying next",
				"provider", entry.Name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
