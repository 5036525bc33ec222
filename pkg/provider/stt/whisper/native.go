// This file contains the NativeEngine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// Compile-time assertion that NativeEngine satisfies stt.Engine.
var _ stt.Engine = (*NativeEngine)(nil)

// NativeEngine implements stt.Engine using whisper.cpp Go bindings (CGO).
// The model is shared; each call creates its own whisper context.
type NativeEngine struct {
	model    whisperlib.Model
	language string
	threads  uint

	// Inference is CPU bound and whisper.cpp contexts are heavy, so calls
	// are serialised.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeEngine.
type NativeOption func(*NativeEngine)

// WithNativeLanguage sets the language code for transcription (e.g., "en").
// Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(e *NativeEngine) { e.language = lang }
}

// WithNativeThreads sets the number of CPU threads used for inference. Zero
// keeps the library default.
func WithNativeThreads(n uint) NativeOption {
	return func(e *NativeEngine) { e.threads = n }
}

// NewNative loads the whisper.cpp model at modelPath. A load failure is fatal
// for the caller; there is no lazy retry. Close releases the model.
func NewNative(modelPath string, opts ...NativeOption) (*NativeEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &NativeEngine{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model.
func (e *NativeEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe runs inference on the utterance samples, resampled to 16 kHz
// when needed, and returns the joined segment text. Inference itself cannot
// be interrupted: ctx is only checked before it starts and between segments,
// so a deadline may be overrun by up to one inference.
func (e *NativeEngine) Transcribe(ctx context.Context, u stt.Utterance) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	samples := u.Audio.Samples
	if u.Audio.SampleRate != modelSampleRate {
		samples = audio.Resample(samples, u.Audio.SampleRate, modelSampleRate)
	}
	if len(samples) == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", e.language, "error", err)
	}
	if e.threads > 0 {
		wctx.SetThreads(e.threads)
	}

	// The bindings cannot be interrupted mid-inference. Abort between
	// segments instead.
	var aborted bool
	segment := func(whisperlib.Segment) {
		if ctx.Err() != nil {
			aborted = true
		}
	}
	if err := wctx.Process(samples, nil, segment, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}
	if aborted {
		return "", fmt.Errorf("whisper: %w", ctx.Err())
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
