package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicesteer/internal/config"
)

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
audio:
  sample_rate: 48000
  segment_duration: 1500ms
  silence_rms: 0.01
recognition:
  threshold: 0.8
  metric: jaro-winkler
  token_scan: false
  debounce: 50ms
  engine_timeout: 3s
  initial_direction: up
providers:
  primary:
    name: openai
    api_key: sk-test
    model: whisper-1
    options:
      language: de
  fallback:
    name: whisper
    base_url: http://localhost:8081
  circuit_breaker:
    max_failures: 2
    reset_timeout: 10s
game:
  enabled: false
  tick: 500ms
journal:
  path: /tmp/journal.jsonl
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.SegmentDuration != 1500*time.Millisecond {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if *cfg.Recognition.Threshold != 0.8 || *cfg.Recognition.TokenScan {
		t.Errorf("recognition threshold %v token_scan %v", *cfg.Recognition.Threshold, *cfg.Recognition.TokenScan)
	}
	if cfg.Recognition.Debounce != 50*time.Millisecond || cfg.Recognition.EngineTimeout != 3*time.Second {
		t.Errorf("recognition timings = %+v", cfg.Recognition)
	}
	if cfg.Recognition.CaptureRetry != config.DefaultCaptureRetry {
		t.Errorf("capture_retry = %s, want default", cfg.Recognition.CaptureRetry)
	}
	if cfg.Providers.Primary.Name != "openai" || config.OptString(cfg.Providers.Primary.Options, "language") != "de" {
		t.Errorf("primary = %+v", cfg.Providers.Primary)
	}
	if cfg.Providers.Fallback.BaseURL != "http://localhost:8081" {
		t.Errorf("fallback = %+v", cfg.Providers.Fallback)
	}
	if cfg.Providers.CircuitBreaker.MaxFailures != 2 || cfg.Providers.CircuitBreaker.ResetTimeout != 10*time.Second {
		t.Errorf("circuit_breaker = %+v", cfg.Providers.CircuitBreaker)
	}
	if cfg.Game.IsEnabled() || cfg.Game.Tick != 500*time.Millisecond || cfg.Game.Width != config.DefaultGameWidth {
		t.Errorf("game = %+v", cfg.Game)
	}
	if cfg.Journal.Path != "/tmp/journal.jsonl" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  primary:\n    name: deepgram\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr || !cfg.Server.HTTPEnabled() {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.SegmentDuration != time.Second {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	r := cfg.Recognition
	if *r.Threshold != 0.7 || !*r.TokenScan || r.Metric != "levenshtein" || r.InitialDirection != "right" {
		t.Errorf("recognition = threshold %v token_scan %v metric %q initial %q",
			*r.Threshold, *r.TokenScan, r.Metric, r.InitialDirection)
	}
	if r.Debounce != 100*time.Millisecond || r.EngineTimeout != 8*time.Second {
		t.Errorf("recognition timings = %+v", r)
	}
	if !cfg.Game.IsEnabled() || cfg.Game.Tick != 2*time.Second || cfg.Game.Height != 20 {
		t.Errorf("game = %+v", cfg.Game)
	}
}

func TestLoadFromReader_ZeroThresholdIsKept(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`
recognition:
  threshold: 0
providers:
  primary:
    name: openai
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg.Recognition.Threshold != 0 {
		t.Errorf("threshold = %v, want explicit 0", *cfg.Recognition.Threshold)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("recognition:\n  treshold: 0.5\n"))
	if err == nil || !strings.Contains(err.Error(), "treshold") {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestLoadFromReader_ExpandsSecrets(t *testing.T) {
	t.Setenv("VOICESTEER_TEST_KEY", "sk-from-env")
	cfg, err := config.LoadFromReader(strings.NewReader(`
providers:
  primary:
    name: openai
    api_key: ${VOICESTEER_TEST_KEY}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.Primary.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want expanded value", cfg.Providers.Primary.APIKey)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "missing primary",
			yaml: "game:\n  tick: 1s\n",
			want: []string{"providers.primary.name is required"},
		},
		{
			name: "invalid log level",
			yaml: "server:\n  log_level: verbose\nproviders:\n  primary:\n    name: openai\n",
			want: []string{"server.log_level"},
		},
		{
			name: "threshold out of range",
			yaml: "recognition:\n  threshold: 1.5\nproviders:\n  primary:\n    name: openai\n",
			want: []string{"recognition.threshold"},
		},
		{
			name: "unknown metric and direction",
			yaml: "recognition:\n  metric: cosine\n  initial_direction: sideways\nproviders:\n  primary:\n    name: openai\n",
			want: []string{"recognition.metric", "recognition.initial_direction"},
		},
		{
			name: "bad audio",
			yaml: "audio:\n  sample_rate: 1000\n  segment_duration: 30s\n  silence_rms: 2\nproviders:\n  primary:\n    name: openai\n",
			want: []string{"audio.sample_rate", "audio.segment_duration", "audio.silence_rms"},
		},
		{
			name: "bad vocabulary direction",
			yaml: "recognition:\n  vocabulary:\n    north: upward\nproviders:\n  primary:\n    name: openai\n",
			want: []string{"recognition.vocabulary"},
		},
		{
			name: "negative timings",
			yaml: "recognition:\n  debounce: -1s\nproviders:\n  primary:\n    name: openai\n  circuit_breaker:\n    max_failures: -1\n",
			want: []string{"recognition.debounce", "providers.circuit_breaker"},
		},
		{
			name: "tiny board",
			yaml: "game:\n  width: 3\nproviders:\n  primary:\n    name: openai\n",
			want: []string{"game board"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) err = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "voicesteer.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  primary:\n    name: whisper\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Primary.Name != "whisper" {
		t.Errorf("primary = %q", cfg.Providers.Primary.Name)
	}
}

func TestLoadEnv(t *testing.T) {
	if err := config.LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnv(absent) = %v, want nil", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VOICESTEER_DOTENV_TEST=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICESTEER_DOTENV_TEST", "")
	os.Unsetenv("VOICESTEER_DOTENV_TEST")
	if err := config.LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("VOICESTEER_DOTENV_TEST"); got != "hello" {
		t.Errorf("VOICESTEER_DOTENV_TEST = %q, want hello", got)
	}
}
