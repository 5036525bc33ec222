// Command voicesteer listens to the microphone and steers a terminal snake
// with spoken "up", "down", "left" and "right".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voicesteer/internal/app"
	"github.com/MrWong99/voicesteer/internal/config"
	"github.com/MrWong99/voicesteer/internal/observe"
	"github.com/MrWong99/voicesteer/pkg/audio/capture"
	"github.com/MrWong99/voicesteer/pkg/audio/capture/portaudio"
	"github.com/MrWong99/voicesteer/pkg/provider/stt"
	"github.com/MrWong99/voicesteer/pkg/provider/stt/deepgram"
	"github.com/MrWong99/voicesteer/pkg/provider/stt/openai"
	"github.com/MrWong99/voicesteer/pkg/provider/stt/whisper"
)

// defaultGameLog receives log output while the game owns the terminal.
const defaultGameLog = "voicesteer.log"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file with engine API keys")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "voicesteer: %v\n", err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicesteer: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicesteer: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logFile := cfg.Server.LogFile
	if logFile == "" && cfg.Game.IsEnabled() {
		logFile = defaultGameLog
	}
	logger, logCloser, err := observe.NewLogger(observe.LogConfig{
		Level: string(cfg.Server.LogLevel),
		File:  logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicesteer: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("voicesteer starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Engines ───────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinEngines(reg)

	engines, err := buildEngines(cfg, reg)
	if err != nil {
		slog.Error("failed to build engines", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Game.IsEnabled() {
		printStartupSummary(cfg)
	}

	opts := []app.Option{app.WithMetricsHandler(tel.MetricsHandler())}

	// ── Microphone ────────────────────────────────────────────────────────────
	if cfg.Audio.ReplayDir == "" {
		mic, err := openMicrophone(cfg.Audio)
		if err != nil {
			slog.Error("failed to open microphone", "err", err)
			fmt.Fprintf(os.Stderr, "voicesteer: %v\n", err)
			return 1
		}
		defer func() {
			if err := mic.Close(); err != nil {
				slog.Warn("microphone close error", "err", err)
			}
		}()
		opts = append(opts, app.WithCapturer(mic))
	}

	application, err := app.New(cfg, engines, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		fmt.Fprintf(os.Stderr, "voicesteer: %v\n", err)
		return 1
	}

	slog.Info("voicesteer ready")

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}

	if application.GameEnabled() {
		sum := application.Summary()
		fmt.Printf("Score: %d after %d moves\n", sum.Score, sum.Moves)
	}
	slog.Info("goodbye")
	return code
}

func openMicrophone(ac config.AudioConfig) (*portaudio.Microphone, error) {
	var opts []portaudio.Option
	if ac.FramesPerBuffer > 0 {
		opts = append(opts, portaudio.WithFramesPerBuffer(ac.FramesPerBuffer))
	}
	return portaudio.Open(capture.Config{
		SampleRate: ac.SampleRate,
		Duration:   ac.SegmentDuration,
	}, opts...)
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// registerBuiltinEngines wires the engines that ship with voicesteer into reg.
func registerBuiltinEngines(reg *config.Registry) {
	reg.RegisterEngine("openai", func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, openai.WithLanguage(lang))
		}
		if prompt := config.OptString(entry.Options, "prompt"); prompt != "" {
			opts = append(opts, openai.WithPrompt(prompt))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEngine("deepgram", func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if kw := config.OptStrings(entry.Options, "keywords"); len(kw) > 0 {
			opts = append(opts, deepgram.WithKeywords(kw...))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterEngine("whisper", func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterEngine("whisper-native", func(entry config.ProviderEntry) (stt.Engine, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = config.OptString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := config.OptInt(entry.Options, "threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	for _, name := range reg.Names() {
		slog.Debug("registered engine", "name", name)
	}
}

// buildEngines instantiates the primary and optional fallback engine named in
// cfg. A construction failure is fatal.
func buildEngines(cfg *config.Config, reg *config.Registry) (app.Engines, error) {
	var es app.Engines

	primary, err := reg.CreateEngine(cfg.Providers.Primary)
	if err != nil {
		return es, err
	}
	es.Primary, es.PrimaryName = primary, cfg.Providers.Primary.Name
	slog.Info("engine created", "slot", "primary", "name", es.PrimaryName)

	if name := cfg.Providers.Fallback.Name; name != "" {
		fb, err := reg.CreateEngine(cfg.Providers.Fallback)
		if err != nil {
			return es, err
		}
		es.Fallback, es.FallbackName = fb, name
		slog.Info("engine created", "slot", "fallback", "name", name)
	}
	return es, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      voicesteer: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Primary", engineLabel(cfg.Providers.Primary))
	printRow("Fallback", engineLabel(cfg.Providers.Fallback))
	source := "microphone"
	if cfg.Audio.ReplayDir != "" {
		source = "replay " + cfg.Audio.ReplayDir
	}
	printRow("Audio", source)
	printRow("Segment", cfg.Audio.SegmentDuration.String())
	printRow("Threshold", fmt.Sprintf("%.2f", *cfg.Recognition.Threshold))
	if cfg.Server.HTTPEnabled() {
		printRow("Listen addr", cfg.Server.ListenAddr)
	} else {
		printRow("Listen addr", "(disabled)")
	}
	if cfg.Journal.Path != "" {
		printRow("Journal", cfg.Journal.Path)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func engineLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	}
	return e.Name
}

func printRow(kind, value string) {
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-11s : %-22s ║\n", kind, value)
}
