// Package stt defines the Engine interface for speech-to-text backends.
//
// An Engine turns one short recorded utterance into text. The recognition
// pipeline calls engines in batch mode: each call receives a complete
// [Utterance] and returns the best transcription, or an empty string when
// nothing was recognised. Concrete engines live in the sub-packages (openai,
// deepgram, whisper) and a recording test double lives in stt/mock.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/MrWong99/voicesteer/pkg/audio"
)

// ErrNoTranscription is returned when no engine produced usable text for an
// utterance. It is a normal outcome of quiet or unintelligible audio.
var ErrNoTranscription = errors.New("stt: no transcription")

// Utterance is the unit of work handed to an Engine.
type Utterance struct {
	// Audio is the mono segment as captured.
	Audio audio.Buffer

	// Artifact is the WAV rendering of Audio on disk. It may be nil, in which
	// case engines that need a file encode Audio in memory.
	Artifact *audio.Artifact
}

// WAV returns the utterance as a 16-bit mono WAV file. The artifact is read
// when present so that every engine uploads the same bytes.
func (u Utterance) WAV() ([]byte, error) {
	if u.Artifact != nil {
		return u.Artifact.Bytes()
	}
	return audio.WAVBytes(u.Audio)
}

// Engine is the abstraction over any speech-to-text backend.
type Engine interface {
	// Transcribe returns the text spoken in u. An empty string with a nil
	// error means the engine heard nothing it could transcribe. Transport,
	// authentication and decoding failures are returned as errors; a
	// cancelled ctx returns an error wrapping ctx.Err().
	Transcribe(ctx context.Context, u Utterance) (string, error)
}

// Normalize lowercases text, replaces punctuation with spaces, and collapses
// runs of whitespace. " Right! " becomes "right".
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'':
			return -1
		default:
			return ' '
		}
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}
