package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/voicesteer/pkg/audio"
	"github.com/MrWong99/voicesteer/pkg/audio/capture"
)

func writeWAV(t *testing.T, fs afero.Fs, path string, buf audio.Buffer) {
	t.Helper()
	data, err := audio.WAVBytes(buf)
	if err != nil {
		t.Fatalf("WAVBytes: %v", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func constant(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestReplay_CyclesInLexicalOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/clips/b.wav", audio.Buffer{Samples: constant(8000, 0.5), SampleRate: 16000})
	writeWAV(t, fs, "/clips/a.wav", audio.Buffer{Samples: constant(8000, 0.25), SampleRate: 16000})
	if err := afero.WriteFile(fs, "/clips/notes.txt", []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := capture.NewReplay(fs, "/clips", capture.Config{SampleRate: 16000, Duration: time.Second}, capture.WithoutPacing())
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	if files := r.Files(); len(files) != 2 || files[0] != "/clips/a.wav" {
		t.Fatalf("Files() = %v, want a.wav first", files)
	}

	ctx := context.Background()
	want := []float32{0.25, 0.5, 0.25}
	for i, level := range want {
		buf, err := r.Capture(ctx)
		if err != nil {
			t.Fatalf("Capture %d: %v", i, err)
		}
		if buf.Len() != 16000 {
			t.Fatalf("Capture %d: Len = %d, want 16000 (padded to one segment)", i, buf.Len())
		}
		if d := buf.Samples[0] - level; d > 0.01 || d < -0.01 {
			t.Errorf("Capture %d: first sample = %f, want ~%f", i, buf.Samples[0], level)
		}
		if buf.Samples[15999] != 0 {
			t.Errorf("Capture %d: padding sample = %f, want 0", i, buf.Samples[15999])
		}
	}
}

func TestReplay_ResamplesToConfiguredRate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/clips/hi.wav", audio.Buffer{Samples: constant(48000, 0.1), SampleRate: 48000})

	r, err := capture.NewReplay(fs, "/clips", capture.Config{SampleRate: 16000, Duration: time.Second}, capture.WithoutPacing())
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	buf, err := r.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if buf.SampleRate != 16000 || buf.Len() != 16000 {
		t.Fatalf("got %d samples at %d Hz, want 16000 at 16000 Hz", buf.Len(), buf.SampleRate)
	}
	if buf.Samples[15999] == 0 {
		t.Error("last sample is padding; resampled clip should fill the segment")
	}
}

func TestNewReplay_EmptyDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/empty", 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := capture.NewReplay(fs, "/empty", capture.Config{}); err == nil {
		t.Fatal("NewReplay(empty dir) returned nil error")
	}
	if _, err := capture.NewReplay(fs, "/missing", capture.Config{}); err == nil {
		t.Fatal("NewReplay(missing dir) returned nil error")
	}
}

func TestReplay_CorruptFileIsCaptureFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/clips/bad.wav", []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := capture.NewReplay(fs, "/clips", capture.Config{}, capture.WithoutPacing())
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	_, err = r.Capture(context.Background())
	if !errors.Is(err, capture.ErrCapture) {
		t.Fatalf("Capture(corrupt) err = %v, want ErrCapture", err)
	}
}

func TestReplay_PacingHonoursCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/clips/a.wav", audio.Buffer{Samples: constant(100, 0.1), SampleRate: 16000})

	r, err := capture.NewReplay(fs, "/clips", capture.Config{Duration: time.Hour})
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Capture(cancelled) err = %v, want context.Canceled", err)
	}
}
