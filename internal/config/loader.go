package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicesteer/internal/command"
	"github.com/MrWong99/voicesteer/pkg/direction"
)

// ValidEngineNames lists the engines that ship with voicesteer.
// Used by [Validate] to warn about unrecognised engine names.
var ValidEngineNames = []string{"openai", "deepgram", "whisper", "whisper-native"}

// LoadEnv reads KEY=value pairs from the dotenv file at path into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env %q: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references in
// credentials, applies defaults and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(&cfg.Providers.Primary)
	expandSecrets(&cfg.Providers.Fallback)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandSecrets(e *ProviderEntry) {
	e.APIKey = os.ExpandEnv(e.APIKey)
	e.BaseURL = os.ExpandEnv(e.BaseURL)
}

// Validate checks that cfg contains a coherent set of values. It expects
// defaults to have been applied and returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.SegmentDuration < 100*time.Millisecond || cfg.Audio.SegmentDuration > 10*time.Second {
		errs = append(errs, fmt.Errorf("audio.segment_duration %s is out of range [100ms, 10s]", cfg.Audio.SegmentDuration))
	}
	if cfg.Audio.FramesPerBuffer < 0 {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d must not be negative", cfg.Audio.FramesPerBuffer))
	}
	if cfg.Audio.SilenceRMS < 0 || cfg.Audio.SilenceRMS >= 1 {
		errs = append(errs, fmt.Errorf("audio.silence_rms %v is out of range [0, 1)", cfg.Audio.SilenceRMS))
	}

	// Recognition
	r := cfg.Recognition
	if r.Threshold != nil && (*r.Threshold < 0 || *r.Threshold > 1) {
		errs = append(errs, fmt.Errorf("recognition.threshold %v is out of range [0, 1]", *r.Threshold))
	}
	if _, err := command.ParseMetric(r.Metric); err != nil {
		errs = append(errs, fmt.Errorf("recognition.metric: %w", err))
	}
	for name, d := range map[string]time.Duration{
		"debounce":       r.Debounce,
		"capture_retry":  r.CaptureRetry,
		"engine_timeout": r.EngineTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("recognition.%s must not be negative", name))
		}
	}
	if _, err := direction.Parse(r.InitialDirection); err != nil {
		errs = append(errs, fmt.Errorf("recognition.initial_direction: %w", err))
	}
	if len(r.Vocabulary) > 0 {
		opts, err := r.MatcherOptions()
		if err == nil {
			_, err = command.New(opts...)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("recognition.vocabulary: %w", err))
		}
	}

	// Providers
	if cfg.Providers.Primary.Name == "" {
		errs = append(errs, errors.New("providers.primary.name is required"))
	}
	validateEngineName("primary", cfg.Providers.Primary.Name)
	validateEngineName("fallback", cfg.Providers.Fallback.Name)
	if cfg.Providers.Fallback.Name == "" {
		slog.Warn("providers.fallback is not configured; a failed transcription will not be retried")
	}
	cb := cfg.Providers.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.circuit_breaker values must not be negative"))
	}

	// Game
	if cfg.Game.Tick <= 0 {
		errs = append(errs, fmt.Errorf("game.tick %s must be positive", cfg.Game.Tick))
	}
	if cfg.Game.Width < 5 || cfg.Game.Height < 5 {
		errs = append(errs, fmt.Errorf("game board %dx%d is smaller than 5x5", cfg.Game.Width, cfg.Game.Height))
	}

	return errors.Join(errs...)
}

// validateEngineName logs a warning if name is non-empty and not one of
// [ValidEngineNames].
func validateEngineName(slot, name string) {
	if name == "" || slices.Contains(ValidEngineNames, name) {
		return
	}
	slog.Warn("unknown engine name, may be a typo or a third-party engine",
		"slot", slot,
		"name", name,
		"known", ValidEngineNames,
	)
}
