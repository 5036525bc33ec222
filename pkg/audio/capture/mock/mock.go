// Package mock provides a scripted [capture.Capturer] for tests.
//
// Each call to Capture consumes the next Step. When the script is exhausted
// the last step is repeated, so a single-step script yields the same result
// forever.
//
//	c := &mock.Capturer{Steps: []mock.Step{
//	    {Err: errors.New("device busy")},
//	    {Buffer: audio.Buffer{Samples: speech, SampleRate: 16000}},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/audio/capture"
)

// Step is one scripted Capture result.
type Step struct {
	Buffer audio.Buffer
	Err    error
}

// Capturer is a mock implementation of capture.Capturer.
type Capturer struct {
	mu sync.Mutex

	// Steps is the script of results returned by successive Capture calls.
	Steps []Step

	// OnCapture, if set, is called at the start of every Capture with the
	// 1-based call number. Tests use it to cancel the loop after N captures.
	OnCapture func(call int)

	// CallCount is the number of Capture calls so far.
	CallCount int
}

// Compile-time assertion that Capturer implements capture.Capturer.
var _ capture.Capturer = (*Capturer)(nil)

// Capture returns the next scripted step. A cancelled ctx returns ctx.Err()
// after the call has been counted.
func (c *Capturer) Capture(ctx context.Context) (audio.Buffer, error) {
	c.mu.Lock()
	c.CallCount++
	call := c.CallCount
	var step Step
	if n := len(c.Steps); n > 0 {
		idx := call - 1
		if idx >= n {
			idx = n - 1
		}
		step = c.Steps[idx]
	}
	hook := c.OnCapture
	c.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	return step.Buffer, step.Err
}

// Calls returns the number of Capture calls. Thread-safe.
func (c *Capturer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}
