package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/voicesteer/pkg/audio"
)

// Compile-time assertion that Replay satisfies Capturer.
var _ Capturer = (*Replay)(nil)

// Replay plays back WAV files from a directory as if they were recorded live.
// Files are visited in lexical order and the cycle repeats forever. Each file
// is converted to mono at the configured sample rate and truncated or padded
// with silence to one segment.
type Replay struct {
	cfg   Config
	fs    afero.Fs
	files []string
	next  int
	pace  bool
}

// ReplayOption configures a [Replay].
type ReplayOption func(*Replay)

// WithoutPacing disables the real-time sleep between segments. Useful in
// tests.
func WithoutPacing() ReplayOption {
	return func(r *Replay) { r.pace = false }
}

// NewReplay lists the .wav files in dir. It fails if the directory cannot be
// read or holds no WAV files.
func NewReplay(fs afero.Fs, dir string, cfg Config, opts ...ReplayOption) (*Replay, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("capture: read replay dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("capture: replay dir %q contains no .wav files", dir)
	}
	slices.Sort(files)

	r := &Replay{
		cfg:   cfg.WithDefaults(),
		fs:    fs,
		files: files,
		pace:  true,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Files returns the replay order.
func (r *Replay) Files() []string { return slices.Clone(r.files) }

// Capture decodes the next file in the cycle. With pacing enabled it waits
// one segment duration first, mirroring the blocking behaviour of a real
// recording.
func (r *Replay) Capture(ctx context.Context) (audio.Buffer, error) {
	if r.pace {
		t := time.NewTimer(r.cfg.Duration)
		select {
		case <-ctx.Done():
			t.Stop()
			return audio.Buffer{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	path := r.files[r.next]
	r.next = (r.next + 1) % len(r.files)

	f, err := r.fs.Open(path)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: open %q: %w", ErrCapture, path, err)
	}
	defer f.Close()

	buf, err := audio.DecodeWAV(f)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: decode %q: %w", ErrCapture, path, err)
	}

	samples := audio.Resample(buf.Samples, buf.SampleRate, r.cfg.SampleRate)
	need := audio.SamplesForDuration(r.cfg.Duration, r.cfg.SampleRate)
	return audio.Buffer{
		Samples:    Fit(samples, need),
		SampleRate: r.cfg.SampleRate,
	}, nil
}
