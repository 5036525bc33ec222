package recognizer

import (
	"time"

	"github.com/MrWong99/voicesteer/internal/command"
	"github.com/MrWong99/voicesteer/pkg/direction"
	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// Outcome classifies how an iteration ended.
type Outcome string

const (
	// OutcomeCaptureFailed means the capturer returned an error.
	OutcomeCaptureFailed Outcome = "capture_failed"

	// OutcomeSilent means the segment was below the silence threshold and no
	// engine was called.
	OutcomeSilent Outcome = "silent"

	// OutcomeNoTranscription means no engine produced text.
	OutcomeNoTranscription Outcome = "no_transcription"

	// OutcomeNoMatch means the text did not resemble any command closely
	// enough.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeAccepted means the state accepted the matched direction.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeRejected means the matched direction was a reversal.
	OutcomeRejected Outcome = "rejected"
)

// Heard reports whether the iteration produced a transcription.
func (o Outcome) Heard() bool {
	return o == OutcomeNoMatch || o == OutcomeAccepted || o == OutcomeRejected
}

// Result describes one completed iteration.
type Result struct {
	Outcome       Outcome
	Transcription stt.Transcription // zero unless Outcome.Heard()
	Match         command.Match     // zero unless Outcome.Heard()

	// Direction is the state after the iteration.
	Direction direction.Direction

	// Err is the capture or transcription error, if any.
	Err error

	// Started is when the iteration began; Duration excludes the debounce
	// sleep.
	Started  time.Time
	Duration time.Duration
}

// Observer receives every Result. It is called synchronously from the loop
// goroutine, so it must not block.
type Observer func(Result)
