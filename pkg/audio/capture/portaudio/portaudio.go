// Package portaudio records capture segments from the default system input
// device through PortAudio. It needs cgo and libportaudio; everything else in
// the pipeline depends only on [capture.Capturer].
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/audio/capture"
)

// DefaultFramesPerBuffer is the PortAudio read size in samples.
const DefaultFramesPerBuffer = 1024

// Compile-time assertion that Microphone satisfies capture.Capturer.
var _ capture.Capturer = (*Microphone)(nil)

// Microphone records segments from the default input device. A stream is
// opened for every segment and closed before Capture returns, so the device
// is never held between iterations.
type Microphone struct {
	cfg             capture.Config
	framesPerBuffer int

	mu     sync.Mutex
	closed bool
}

// Option configures a [Microphone].
type Option func(*Microphone)

// WithFramesPerBuffer sets the number of samples read from PortAudio per
// Read call. Default: 1024.
func WithFramesPerBuffer(n int) Option {
	return func(m *Microphone) {
		if n > 0 {
			m.framesPerBuffer = n
		}
	}
}

// Open initialises PortAudio and verifies that a default input
// device exists. The returned Microphone must be closed to release PortAudio.
// A failure here is fatal to the application: without a device the pipeline
// cannot run.
func Open(cfg capture.Config, opts ...Option) (*Microphone, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialise: %w", err)
	}
	dev, err := pa.DefaultInputDevice()
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: no default input device: %w", err)
	}

	m := &Microphone{
		cfg:             cfg.WithDefaults(),
		framesPerBuffer: DefaultFramesPerBuffer,
	}
	for _, o := range opts {
		o(m)
	}
	slog.Info("microphone ready",
		"device", dev.Name,
		"sample_rate", m.cfg.SampleRate,
		"duration", m.cfg.Duration,
	)
	return m, nil
}

// Capture records exactly one segment of the configured duration.
func (m *Microphone) Capture(ctx context.Context) (audio.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return audio.Buffer{}, fmt.Errorf("%w: microphone is closed", capture.ErrCapture)
	}
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	need := audio.SamplesForDuration(m.cfg.Duration, m.cfg.SampleRate)
	frame := make([]float32, m.framesPerBuffer)

	stream, err := pa.OpenDefaultStream(1, 0, float64(m.cfg.SampleRate), len(frame), frame)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: open stream: %w", capture.ErrCapture, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: start stream: %w", capture.ErrCapture, err)
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			slog.Debug("microphone: stop stream", "error", err)
		}
	}()

	samples := make([]float32, 0, need+len(frame))
	for len(samples) < need {
		if err := ctx.Err(); err != nil {
			return audio.Buffer{}, err
		}
		if err := stream.Read(); err != nil {
			// An overflow only means we dropped a few frames; the segment is
			// still usable.
			if !errors.Is(err, pa.InputOverflowed) {
				return audio.Buffer{}, fmt.Errorf("%w: read stream: %w", capture.ErrCapture, err)
			}
			slog.Debug("microphone: input overflowed")
		}
		samples = append(samples, frame...)
	}

	return audio.Buffer{
		Samples:    capture.Fit(samples, need),
		SampleRate: m.cfg.SampleRate,
	}, nil
}

// Close terminates PortAudio. Calling Close more than once is safe.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}
