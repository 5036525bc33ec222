// Package capture provides sources of fixed-duration mono audio segments.
//
// The central abstraction is [Capturer]: each call to Capture blocks for
// roughly one segment duration and returns a fresh [audio.Buffer].
//
// [Replay] cycles through WAV files in a directory at real-time pace, for
// headless runs and demos without a microphone. The PortAudio microphone
// lives in the portaudio subpackage so that only binaries that record need
// cgo.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/voicesteer/pkg/audio"
)

// ErrCapture wraps every device or I/O failure raised while recording a
// segment. Context cancellation is returned unwrapped so callers can tell a
// shutdown from a device problem.
var ErrCapture = errors.New("capture failed")

// DefaultDuration is the segment length used when none is configured.
const DefaultDuration = time.Second

// Capturer records one audio segment per call.
//
// Implementations need not be safe for concurrent use; the recognition loop
// is their only caller.
type Capturer interface {
	// Capture blocks for about one segment duration and returns the recorded
	// mono buffer. It returns ctx.Err() if ctx is cancelled mid-capture and an
	// error wrapping [ErrCapture] on device failure.
	Capture(ctx context.Context) (audio.Buffer, error)
}

// Config holds the segment format shared by all capturers.
type Config struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// Duration of each segment. Default: 1s.
	Duration time.Duration
}

// WithDefaults returns c with zero fields replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	return c
}

// Fit truncates or zero-pads samples to exactly n entries.
func Fit(samples []float32, n int) []float32 {
	if len(samples) >= n {
		return samples[:n]
	}
	out := make([]float32, n)
	copy(out, samples)
	return out
}
