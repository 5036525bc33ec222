package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// artifactPattern is the file name pattern for ephemeral utterance files.
const artifactPattern = "voicesteer-*.wav"

// Artifact is an ephemeral WAV file holding one captured segment. Whoever
// writes an Artifact must Remove it on every exit path.
type Artifact struct {
	// Path is the file name within the store's filesystem.
	Path string

	fs afero.Fs
}

// Open opens the artifact for reading.
func (a *Artifact) Open() (afero.File, error) {
	f, err := a.fs.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("audio: open artifact: %w", err)
	}
	return f, nil
}

// Bytes returns the full WAV file content.
func (a *Artifact) Bytes() ([]byte, error) {
	data, err := afero.ReadFile(a.fs, a.Path)
	if err != nil {
		return nil, fmt.Errorf("audio: read artifact: %w", err)
	}
	return data, nil
}

// Remove deletes the artifact. Removing an already deleted artifact is not an
// error.
func (a *Artifact) Remove() error {
	if err := a.fs.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("audio: remove artifact: %w", err)
	}
	return nil
}

// ArtifactStore writes captured segments as temporary WAV files. It is safe
// for concurrent use as long as the underlying filesystem is.
type ArtifactStore struct {
	fs  afero.Fs
	dir string
}

// NewArtifactStore returns a store that creates files in dir on fs. An empty
// dir selects the OS temporary directory.
func NewArtifactStore(fs afero.Fs, dir string) *ArtifactStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ArtifactStore{fs: fs, dir: dir}
}

// Dir returns the directory artifacts are written to.
func (s *ArtifactStore) Dir() string { return s.dir }

// Write encodes buf as a 16-bit mono WAV file at buf.SampleRate. On error no
// file is left behind.
func (s *ArtifactStore) Write(buf Buffer) (*Artifact, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("audio: artifact dir %q: %w", s.dir, err)
	}
	f, err := afero.TempFile(s.fs, s.dir, artifactPattern)
	if err != nil {
		return nil, fmt.Errorf("audio: create artifact: %w", err)
	}
	a := &Artifact{Path: f.Name(), fs: s.fs}

	if err := EncodeWAV(f, buf); err != nil {
		_ = f.Close()
		_ = a.Remove()
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = a.Remove()
		return nil, fmt.Errorf("audio: close artifact: %w", err)
	}
	return a, nil
}

// Pending lists artifacts currently present in the store directory. A
// healthy pipeline leaves none between iterations.
func (s *ArtifactStore) Pending() ([]string, error) {
	matches, err := afero.Glob(s.fs, filepath.Join(s.dir, artifactPattern))
	if err != nil {
		return nil, fmt.Errorf("audio: list artifacts: %w", err)
	}
	return matches, nil
}
