// Package journal keeps an append-only record of what the recogniser heard.
// Entries are stored as JSON lines in a single file, one per iteration that
// produced a transcription, which makes it easy to tune the match threshold
// against real sessions.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/voicesteer/internal/recognizer"
)

// Record is a single journal entry.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Engine    string    `json:"engine"`
	Fallback  bool      `json:"fallback,omitempty"`
	Token     string    `json:"token,omitempty"`
	Score     float64   `json:"score"`
	Outcome   string    `json:"outcome"`
	Direction string    `json:"direction"`
}

// FromResult converts an iteration result into a Record.
func FromResult(r recognizer.Result) Record {
	return Record{
		Timestamp: r.Started.UTC(),
		Text:      r.Transcription.Text,
		Engine:    r.Transcription.Engine,
		Fallback:  r.Transcription.Fallback,
		Token:     r.Match.Token,
		Score:     r.Match.Score,
		Outcome:   string(r.Outcome),
		Direction: r.Direction.String(),
	}
}

// FileStore persists records as JSON lines in a file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewFileStore creates a FileStore that appends to path on fsys. The file and
// its parent directory are created on first write.
func NewFileStore(fsys afero.Fs, path string) *FileStore {
	return &FileStore{fs: fsys, path: path}
}

// Path returns the journal file path.
func (s *FileStore) Path() string { return s.path }

// Append writes rec as one line.
func (s *FileStore) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("journal: create dir: %w", err)
		}
	}
	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Records reads every entry back. A missing file yields no records.
func (s *FileStore) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("journal: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("journal: read: %w", err)
	}
	return out, nil
}

// Observer returns a loop observer that journals every iteration that heard
// something. Write failures are logged and do not affect the loop.
func (s *FileStore) Observer() recognizer.Observer {
	return func(r recognizer.Result) {
		if !r.Outcome.Heard() {
			return
		}
		if err := s.Append(FromResult(r)); err != nil {
			slog.Warn("journal write failed", "path", s.path, "err", err)
		}
	}
}
