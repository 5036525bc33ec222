// Package mock provides a test double for the stt.Engine interface.
//
// Engine returns scripted results in order and records every call so tests
// can assert which engines ran and with what audio.
//
// Example:
//
//	primary := &mock.Engine{Results: []mock.Result{{Text: ""}}}
//	fallback := &mock.Engine{Results: []mock.Result{{Text: "right"}}}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// Result is one scripted Transcribe outcome.
type Result struct {
	Text string
	Err  error
}

// TranscribeCall records a single invocation of Engine.Transcribe.
type TranscribeCall struct {
	// Utterance is the value passed to Transcribe.
	Utterance stt.Utterance

	// HadArtifact reports whether the artifact file existed at call time.
	HadArtifact bool
}

// Engine is a mock implementation of stt.Engine.
type Engine struct {
	mu sync.Mutex

	// Results is consumed one entry per call. Once exhausted the last entry
	// is repeated. An empty script returns ("", nil).
	Results []Result

	// Delay, if positive, blocks each call until it elapses or ctx is done.
	Delay time.Duration

	// Calls records every call to Transcribe in order.
	Calls []TranscribeCall
}

// Compile-time assertion that Engine implements stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Transcribe records the call and returns the next scripted result.
func (e *Engine) Transcribe(ctx context.Context, u stt.Utterance) (string, error) {
	had := false
	if u.Artifact != nil {
		if _, err := u.Artifact.Bytes(); err == nil {
			had = true
		}
	}

	e.mu.Lock()
	e.Calls = append(e.Calls, TranscribeCall{Utterance: u, HadArtifact: had})
	var r Result
	if n := len(e.Results); n > 0 {
		idx := len(e.Calls) - 1
		if idx >= n {
			idx = n - 1
		}
		r = e.Results[idx]
	}
	delay := e.Delay
	e.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return r.Text, r.Err
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = nil
}
