// Package config provides the configuration schema, loader, and engine
// registry for voicesteer.
package config

import (
	"slices"
	"time"

	"github.com/MrWong99/voicesteer/internal/command"
	"github.com/MrWong99/voicesteer/pkg/direction"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr    = "127.0.0.1:8080"
	DefaultSampleRate    = 16000
	DefaultSegment       = time.Second
	DefaultDebounce      = 100 * time.Millisecond
	DefaultCaptureRetry  = 500 * time.Millisecond
	DefaultEngineTimeout = 8 * time.Second
	DefaultGameTick      = 2 * time.Second
	DefaultGameWidth     = 30
	DefaultGameHeight    = 20
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Game        GameConfig        `yaml:"game"`
	Journal     JournalConfig     `yaml:"journal"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the status and metrics server. Set it
	// to "off" to disable the server. Default: 127.0.0.1:8080.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, sends JSON logs to a rotating file instead of
	// stderr.
	LogFile string `yaml:"log_file"`
}

// HTTPEnabled reports whether the status server should run.
func (s ServerConfig) HTTPEnabled() bool { return s.ListenAddr != "off" }

// AudioConfig describes how segments are recorded.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// SegmentDuration is the length of each recording. Default: 1s.
	SegmentDuration time.Duration `yaml:"segment_duration"`

	// FramesPerBuffer is the PortAudio read size. Default: 1024.
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// ReplayDir, when set, replaces the microphone with the WAV files in
	// this directory.
	ReplayDir string `yaml:"replay_dir"`

	// ArtifactDir holds the per-iteration WAV file. Default: OS temp dir.
	ArtifactDir string `yaml:"artifact_dir"`

	// SilenceRMS skips transcription of quieter segments. 0 disables.
	SilenceRMS float64 `yaml:"silence_rms"`
}

// RecognitionConfig tunes the loop and the matcher.
type RecognitionConfig struct {
	// Threshold is the minimum similarity in [0, 1]. Default: 0.7.
	Threshold *float64 `yaml:"threshold"`

	// Metric is "levenshtein" (default), "jaro-winkler" or "phonetic".
	Metric string `yaml:"metric"`

	// TokenScan also scores every word of a multi-word transcription.
	// Default: true.
	TokenScan *bool `yaml:"token_scan"`

	// Debounce is the pause after each iteration. Default: 100ms.
	Debounce time.Duration `yaml:"debounce"`

	// CaptureRetry is the pause after a capture failure. Default: 500ms.
	CaptureRetry time.Duration `yaml:"capture_retry"`

	// EngineTimeout bounds every engine call. Default: 8s.
	EngineTimeout time.Duration `yaml:"engine_timeout"`

	// InitialDirection is the state at startup. Default: right.
	InitialDirection string `yaml:"initial_direction"`

	// Vocabulary replaces the default command words. Keys are tokens,
	// values are directions, e.g. {"north": "up"}.
	Vocabulary map[string]string `yaml:"vocabulary"`
}

// ProvidersConfig selects the transcription engines. Each entry names a
// factory registered in the [Registry].
type ProvidersConfig struct {
	Primary  ProviderEntry `yaml:"primary"`
	Fallback ProviderEntry `yaml:"fallback"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderEntry is the configuration block of one engine.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered engine (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey authenticates against the engine's API if any. ${VAR}
	// references are expanded from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the engine's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the engine, or the model file path for
	// whisper-native.
	Model string `yaml:"model"`

	// Options holds engine-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// CircuitBreakerConfig mirrors resilience.CircuitBreakerConfig.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// GameConfig configures the terminal snake.
type GameConfig struct {
	// Enabled runs the game in the terminal. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Tick is the time between moves. Default: 2s.
	Tick time.Duration `yaml:"tick"`

	// Width and Height of the board. Defaults: 30x20.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// IsEnabled reports whether the game should run.
func (g GameConfig) IsEnabled() bool { return g.Enabled == nil || *g.Enabled }

// JournalConfig configures the recognition journal.
type JournalConfig struct {
	// Path of the JSON-lines file. Empty disables the journal.
	Path string `yaml:"path"`
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	a := &cfg.Audio
	if a.SampleRate == 0 {
		a.SampleRate = DefaultSampleRate
	}
	if a.SegmentDuration == 0 {
		a.SegmentDuration = DefaultSegment
	}

	r := &cfg.Recognition
	if r.Threshold == nil {
		t := command.DefaultThreshold
		r.Threshold = &t
	}
	if r.Metric == "" {
		r.Metric = command.Levenshtein.String()
	}
	if r.TokenScan == nil {
		on := true
		r.TokenScan = &on
	}
	if r.Debounce == 0 {
		r.Debounce = DefaultDebounce
	}
	if r.CaptureRetry == 0 {
		r.CaptureRetry = DefaultCaptureRetry
	}
	if r.EngineTimeout == 0 {
		r.EngineTimeout = DefaultEngineTimeout
	}
	if r.InitialDirection == "" {
		r.InitialDirection = direction.Right.String()
	}

	g := &cfg.Game
	if g.Tick == 0 {
		g.Tick = DefaultGameTick
	}
	if g.Width == 0 {
		g.Width = DefaultGameWidth
	}
	if g.Height == 0 {
		g.Height = DefaultGameHeight
	}
}

// MatcherOptions translates the recognition section into matcher options.
// cfg must have passed [Validate].
func (r RecognitionConfig) MatcherOptions() ([]command.Option, error) {
	metric, err := command.ParseMetric(r.Metric)
	if err != nil {
		return nil, err
	}
	opts := []command.Option{command.WithMetric(metric)}
	if r.Threshold != nil {
		opts = append(opts, command.WithThreshold(*r.Threshold))
	}
	if r.TokenScan != nil {
		opts = append(opts, command.WithTokenScan(*r.TokenScan))
	}
	if len(r.Vocabulary) > 0 {
		vocab, err := r.vocabulary()
		if err != nil {
			return nil, err
		}
		opts = append(opts, command.WithVocabulary(vocab))
	}
	return opts, nil
}

func (r RecognitionConfig) vocabulary() (command.Vocabulary, error) {
	// Sort for a deterministic tie-break order.
	tokens := make([]string, 0, len(r.Vocabulary))
	for t := range r.Vocabulary {
		tokens = append(tokens, t)
	}
	slices.Sort(tokens)

	vocab := make(command.Vocabulary, 0, len(tokens))
	for _, t := range tokens {
		d, err := direction.Parse(r.Vocabulary[t])
		if err != nil {
			return nil, err
		}
		vocab = append(vocab, command.Entry{Token: t, Direction: d})
	}
	return vocab, nil
}
