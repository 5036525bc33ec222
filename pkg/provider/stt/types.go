package stt

// Transcription is the normalised text of one utterance together with the
// name of the engine that produced it.
type Transcription struct {
	// Text is lowercase with punctuation removed. Never empty when returned
	// with a nil error.
	Text string

	// Engine is the name the producing engine was registered under, e.g.
	// "openai" or "whisper-native".
	Engine string

	// Fallback is true when the primary engine failed or returned nothing and
	// the text came from the fallback engine.
	Fallback bool
}

// IsEmpty reports whether t carries no text.
func (t Transcription) IsEmpty() bool { return t.Text == "" }
