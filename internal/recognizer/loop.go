// Package recognizer runs the voice-command recognition loop.
//
// One iteration records a short segment, writes it to a temporary WAV file,
// transcribes it through a [Transcriber] (normally a resilience.Router with a
// fallback engine), matches the text against the command vocabulary and
// proposes the matched direction to the shared [direction.State]. Failures
// inside an iteration are logged and the loop moves on; only cancellation of
// the context passed to [Loop.Run] stops it.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voicesteer/internal/command"
	"github.com/MrWong99/voicesteer/internal/observe"
	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/audio/capture"
	"github.com/MrWong99/voicesteer/pkg/direction"
	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// Default timings.
const (
	DefaultDebounce     = 100 * time.Millisecond
	DefaultCaptureRetry = 500 * time.Millisecond
)

// Transcriber turns an utterance into normalised text. It returns an error
// wrapping [stt.ErrNoTranscription] when nothing usable was heard.
type Transcriber interface {
	Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcription, error)
}

// Config wires a [Loop]. Capturer, Transcriber, Matcher and State are
// required.
type Config struct {
	Capturer    capture.Capturer
	Transcriber Transcriber
	Matcher     *command.Matcher
	State       *direction.State

	// Artifacts receives the per-iteration WAV file. When nil, utterances
	// are handed to the engines without a file.
	Artifacts *audio.ArtifactStore

	// Debounce is slept after every iteration that captured audio.
	// Default: 100ms.
	Debounce time.Duration

	// CaptureRetry is slept after a capture failure. Default: 500ms.
	CaptureRetry time.Duration

	// SilenceRMS skips transcription of segments whose RMS is below it.
	// Zero disables the gate.
	SilenceRMS float64

	// Clock defaults to [SystemClock].
	Clock Clock

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Observer, if set, receives every iteration's Result.
	Observer Observer
}

// Loop is the recognition control loop. Run must be called from a single
// goroutine; LastIteration may be called from any goroutine.
type Loop struct {
	cfg  Config
	last atomic.Int64 // unix nanos of the last completed iteration
}

// New validates cfg and returns a Loop.
func New(cfg Config) (*Loop, error) {
	var errs []error
	if cfg.Capturer == nil {
		errs = append(errs, errors.New("capturer is required"))
	}
	if cfg.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if cfg.Matcher == nil {
		errs = append(errs, errors.New("matcher is required"))
	}
	if cfg.State == nil {
		errs = append(errs, errors.New("state is required"))
	}
	if cfg.SilenceRMS < 0 {
		errs = append(errs, fmt.Errorf("silence rms %v must not be negative", cfg.SilenceRMS))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("recognizer: %w", err)
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.CaptureRetry <= 0 {
		cfg.CaptureRetry = DefaultCaptureRetry
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Loop{cfg: cfg}, nil
}

// LastIteration returns when the most recent iteration completed, or the
// zero time if none has.
func (l *Loop) LastIteration() time.Time {
	n := l.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run executes iterations until ctx is cancelled and then returns nil.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("recognition loop started",
		"debounce", l.cfg.Debounce,
		"threshold", l.cfg.Matcher.Threshold(),
		"direction", l.cfg.State.Read(),
	)
	defer slog.Info("recognition loop stopped", "direction", l.cfg.State.Read())

	for ctx.Err() == nil {
		res, ok := l.Step(ctx)
		if !ok {
			break
		}
		wait := l.cfg.Debounce
		if res.Outcome == OutcomeCaptureFailed {
			wait = l.cfg.CaptureRetry
		}
		if err := l.cfg.Clock.Sleep(ctx, wait); err != nil {
			break
		}
	}
	return nil
}

// Step runs a single iteration. It reports false, with a zero Result, when
// ctx was cancelled before the iteration completed; such iterations are not
// observed.
func (l *Loop) Step(ctx context.Context) (Result, bool) {
	ctx, span := observe.StartSpan(ctx, "recognizer.iteration")
	res, ok := l.step(ctx)
	if !ok {
		observe.EndSpan(span, ctx.Err())
		return Result{}, false
	}
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Transcription.Engine != "" {
		span.SetAttributes(
			attribute.String("engine", res.Transcription.Engine),
			attribute.String("text", res.Transcription.Text),
		)
	}
	observe.EndSpan(span, res.Err)

	l.last.Store(l.cfg.Clock.Now().UnixNano())
	l.cfg.Metrics.RecordIteration(ctx, string(res.Outcome), res.Duration)
	if l.cfg.Observer != nil {
		l.cfg.Observer(res)
	}
	return res, true
}

func (l *Loop) step(ctx context.Context) (Result, bool) {
	clk := l.cfg.Clock
	res := Result{Started: clk.Now()}
	finish := func(o Outcome) (Result, bool) {
		res.Outcome = o
		res.Direction = l.cfg.State.Read()
		res.Duration = clk.Now().Sub(res.Started)
		return res, true
	}
	log := observe.Logger(ctx)

	buf, err := l.cfg.Capturer.Capture(ctx)
	if ctx.Err() != nil {
		return Result{}, false
	}
	l.cfg.Metrics.CaptureDuration.Record(ctx, clk.Now().Sub(res.Started).Seconds())
	if err != nil {
		log.Warn("audio capture failed", "err", err, "retry_in", l.cfg.CaptureRetry)
		res.Err = err
		return finish(OutcomeCaptureFailed)
	}

	if l.cfg.SilenceRMS > 0 {
		if rms := buf.RMS(); rms < l.cfg.SilenceRMS {
			log.Debug("segment below silence threshold", "rms", rms, "threshold", l.cfg.SilenceRMS)
			return finish(OutcomeSilent)
		}
	}

	u := stt.Utterance{Audio: buf}
	if l.cfg.Artifacts != nil {
		art, err := l.cfg.Artifacts.Write(buf)
		if err != nil {
			log.Warn("could not write audio artifact, transcribing from memory", "err", err)
		} else {
			u.Artifact = art
			defer func() {
				if err := art.Remove(); err != nil {
					log.Warn("could not remove audio artifact", "path", art.Path, "err", err)
				}
			}()
		}
	}

	tr, err := l.cfg.Transcriber.Transcribe(ctx, u)
	if ctx.Err() != nil {
		return Result{}, false
	}
	if err != nil {
		log.Info("no transcription", "err", err)
		res.Err = err
		return finish(OutcomeNoTranscription)
	}
	res.Transcription = tr
	if tr.Fallback {
		l.cfg.Metrics.FallbackActivations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("engine", tr.Engine)))
	}

	m := l.cfg.Matcher.Match(tr.Text)
	res.Match = m
	l.cfg.Metrics.MatchScore.Record(ctx, m.Score)
	if !m.OK {
		log.Debug("no valid command", "text", tr.Text, "best", m.Token, "score", m.Score)
		return finish(OutcomeNoMatch)
	}

	before := l.cfg.State.Read()
	if !l.cfg.State.Propose(m.Direction) {
		log.Info("command rejected, would reverse",
			"command", m.Direction, "current", before, "text", tr.Text, "engine", tr.Engine)
		return finish(OutcomeRejected)
	}
	if m.Direction != before {
		l.cfg.Metrics.RecordDirectionChange(ctx, m.Direction.String())
	}
	log.Info("command accepted",
		"command", m.Direction, "previous", before, "text", tr.Text,
		"engine", tr.Engine, "score", m.Score)
	return finish(OutcomeAccepted)
}
