// Package app wires all voicesteer subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the recognition loop, the status server and the
// terminal game in one errgroup, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithCapturer,
// WithScreen, WithFs, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicesteer/internal/command"
	"github.com/MrWong99/voicesteer/internal/config"
	"github.com/MrWong99/voicesteer/internal/game"
	"github.com/MrWong99/voicesteer/internal/health"
	"github.com/MrWong99/voicesteer/internal/journal"
	"github.com/MrWong99/voicesteer/internal/observe"
	"github.com/MrWong99/voicesteer/internal/recognizer"
	"github.com/MrWong99/voicesteer/internal/resilience"
	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/audio/capture"
	"github.com/MrWong99/voicesteer/pkg/direction"
	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// heartbeatSlack is added to one iteration's worst case when deciding
// whether the loop has stalled.
const heartbeatSlack = 5 * time.Second

// Engines holds the constructed transcription engines. Fallback may be nil.
// Populated by main.go via the config registry.
type Engines struct {
	Primary      stt.Engine
	PrimaryName  string
	Fallback     stt.Engine
	FallbackName string
}

// App owns all subsystem lifetimes and orchestrates the recognition pipeline.
type App struct {
	cfg     *config.Config
	engines Engines

	fs             afero.Fs
	capturer       capture.Capturer
	screen         tcell.Screen
	metrics        *observe.Metrics
	metricsHandler http.Handler

	// Subsystems, initialised in New.
	state    *direction.State
	router   *resilience.Router
	loop     *recognizer.Loop
	journal  *journal.FileStore
	game     *game.Game
	listener net.Listener
	server   *http.Server

	mu      sync.Mutex
	summary game.Summary
	serving bool // Run owns the listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCapturer sets the audio source. Without it New replays
// audio.replay_dir. The caller keeps ownership and closes c after Shutdown.
func WithCapturer(c capture.Capturer) Option {
	return func(a *App) { a.capturer = c }
}

// WithFs sets the filesystem used for replay clips, audio artifacts and the
// journal. Default: the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithScreen injects the terminal used by the game.
func WithScreen(s tcell.Screen) Option {
	return func(a *App) { a.screen = s }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics on the status server.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// New creates a fully wired App. cfg must have defaults applied.
//
// New performs all initialisation synchronously: replay source (unless a
// capturer was injected), engine router, command matcher, journal, game and the status
// listener. Any failure here is fatal.
func New(cfg *config.Config, engines Engines, opts ...Option) (*App, error) {
	if engines.Primary == nil {
		return nil, errors.New("app: a primary engine is required")
	}
	a := &App{cfg: cfg, engines: engines}
	for _, o := range opts {
		o(a)
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	ok := false
	defer func() {
		if !ok {
			_ = a.Shutdown(context.Background())
		}
	}()

	initial, err := direction.Parse(cfg.Recognition.InitialDirection)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.state = direction.NewState(initial)

	// ── 1. Audio source ──────────────────────────────────────────────────
	if err := a.initCapturer(); err != nil {
		return nil, fmt.Errorf("app: init audio: %w", err)
	}

	// ── 2. Engine router ─────────────────────────────────────────────────
	a.initRouter()

	// ── 3. Journal ───────────────────────────────────────────────────────
	if cfg.Journal.Path != "" {
		a.journal = journal.NewFileStore(a.fs, cfg.Journal.Path)
	}

	// ── 4. Game ──────────────────────────────────────────────────────────
	if err := a.initGame(); err != nil {
		return nil, fmt.Errorf("app: init game: %w", err)
	}

	// ── 5. Recognition loop ──────────────────────────────────────────────
	if err := a.initLoop(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}

	// ── 6. Status server ─────────────────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	ok = true
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initCapturer() error {
	if a.capturer != nil {
		return nil
	}
	ac := a.cfg.Audio
	if ac.ReplayDir == "" {
		return errors.New("no audio source: set audio.replay_dir or pass WithCapturer")
	}
	r, err := capture.NewReplay(a.fs, ac.ReplayDir, capture.Config{
		SampleRate: ac.SampleRate,
		Duration:   ac.SegmentDuration,
	})
	if err != nil {
		return err
	}
	slog.Info("replaying audio clips", "dir", ac.ReplayDir, "files", len(r.Files()))
	a.capturer = r
	return nil
}

func (a *App) initRouter() {
	cb := a.cfg.Providers.CircuitBreaker
	a.router = resilience.NewRouter(a.engines.Primary, a.engines.PrimaryName, resilience.RouterConfig{
		EngineTimeout: a.cfg.Recognition.EngineTimeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:   cb.MaxFailures,
			ResetTimeout:  cb.ResetTimeout,
			HalfOpenMax:   cb.HalfOpenMax,
			OnStateChange: recognizer.BreakerRecorder(a.metrics),
		},
		OnAttempt: recognizer.AttemptRecorder(a.metrics),
	})
	a.closeIfCloser(a.engines.Primary)
	if a.engines.Fallback != nil {
		a.router.AddFallback(a.engines.FallbackName, a.engines.Fallback)
		a.closeIfCloser(a.engines.Fallback)
	}
}

func (a *App) closeIfCloser(e stt.Engine) {
	if c, ok := e.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
}

func (a *App) initGame() error {
	gc := a.cfg.Game
	if !gc.IsEnabled() {
		return nil
	}
	if a.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		a.screen = s
	}
	g, err := game.New(game.Config{
		Screen: a.screen,
		State:  a.state,
		Tick:   gc.Tick,
		Model:  game.ModelConfig{Width: gc.Width, Height: gc.Height},
	})
	if err != nil {
		return err
	}
	a.game = g
	return nil
}

func (a *App) initLoop() error {
	mopts, err := a.cfg.Recognition.MatcherOptions()
	if err != nil {
		return err
	}
	matcher, err := command.New(mopts...)
	if err != nil {
		return err
	}

	var observers []recognizer.Observer
	if a.journal != nil {
		observers = append(observers, a.journal.Observer())
	}
	if a.game != nil {
		observers = append(observers, a.game.Observe)
	}

	rc := a.cfg.Recognition
	a.loop, err = recognizer.New(recognizer.Config{
		Capturer:     a.capturer,
		Transcriber:  a.router,
		Matcher:      matcher,
		State:        a.state,
		Artifacts:    audio.NewArtifactStore(a.fs, a.cfg.Audio.ArtifactDir),
		Debounce:     rc.Debounce,
		CaptureRetry: rc.CaptureRetry,
		SilenceRMS:   a.cfg.Audio.SilenceRMS,
		Metrics:      a.metrics,
		Observer:     fanOut(observers),
	})
	return err
}

// fanOut returns nil for no observers so the loop can skip the call.
func fanOut(obs []recognizer.Observer) recognizer.Observer {
	switch len(obs) {
	case 0:
		return nil
	case 1:
		return obs[0]
	}
	return func(r recognizer.Result) {
		for _, o := range obs {
			o(r)
		}
	}
}

// heartbeatMaxAge is the longest gap between two completed iterations that
// still counts as healthy: one capture, a timed-out attempt per engine,
// the debounce and capture-retry sleeps, and some slack. whisper-native only
// checks for cancellation between segments, so a slow local inference can
// overrun its timeout and briefly fail /readyz.
func heartbeatMaxAge(cfg *config.Config, engines int) time.Duration {
	rc := cfg.Recognition
	return cfg.Audio.SegmentDuration +
		time.Duration(engines)*rc.EngineTimeout +
		rc.Debounce + rc.CaptureRetry +
		heartbeatSlack
}

func (a *App) initServer() error {
	if !a.cfg.Server.HTTPEnabled() {
		return nil
	}
	maxAge := heartbeatMaxAge(a.cfg, len(a.router.Breakers()))

	h := health.New(a.state,
		health.Heartbeat("recognizer", a.loop.LastIteration, maxAge, nil),
		health.Breakers("engines", a.router.Breakers),
	)
	mux := http.NewServeMux()
	h.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}

	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return err
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// State returns the shared direction cell.
func (a *App) State() *direction.State { return a.state }

// HTTPAddr returns the bound status server address, or "" when disabled.
func (a *App) HTTPAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// GameEnabled reports whether Run drives the terminal game.
func (a *App) GameEnabled() bool { return a.game != nil }

// Summary returns the game result after Run has returned.
func (a *App) Summary() game.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}

// ─── Run / Shutdown ──────────────────────────────────────────────────────────

// Run executes every subsystem until ctx is cancelled or the game ends, and
// returns the first subsystem error, if any. Cancellation is not an error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.loop.Run(gctx)
	})

	if a.server != nil {
		a.mu.Lock()
		a.serving = true
		a.mu.Unlock()
		g.Go(func() error {
			slog.Info("status server listening", "addr", a.HTTPAddr())
			if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return a.server.Shutdown(sctx)
		})
	}

	if a.game != nil {
		g.Go(func() error {
			// The game owns the terminal; when it ends, everything ends.
			defer cancel()
			sum, err := a.game.Run(gctx)
			a.mu.Lock()
			a.summary = sum
			a.mu.Unlock()
			return err
		})
	}

	slog.Info("app running",
		"primary", a.engines.PrimaryName,
		"fallback", a.engines.FallbackName,
		"game", a.game != nil,
	)
	return g.Wait()
}

// Shutdown releases the engines and, when Run never served it, the
// listener. It is safe to call more than once; only the first call has
// effect.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.mu.Lock()
		serving := a.serving
		a.mu.Unlock()
		if a.listener != nil && !serving {
			if err := a.listener.Close(); err != nil {
				errs = append(errs, fmt.Errorf("app: close listener: %w", err))
			}
		}
		for _, c := range a.closers {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				return
			}
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
