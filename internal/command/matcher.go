package command

import (
	"fmt"
	"strings"

	"github.com/MrWong99/voicesteer/pkg/provider/stt"
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the inclusive acceptance threshold. Default: 0.7.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithMetric selects the similarity metric. Default: [Levenshtein].
func WithMetric(metric Metric) Option {
	return func(m *Matcher) {
		m.metric = metric
	}
}

// WithTokenScan enables or disables word-by-word scoring of multi-word
// transcriptions. Default: enabled.
func WithTokenScan(enabled bool) Option {
	return func(m *Matcher) {
		m.tokenScan = enabled
	}
}

// WithVocabulary replaces the default vocabulary.
func WithVocabulary(v Vocabulary) Option {
	return func(m *Matcher) {
		m.vocab = append(Vocabulary(nil), v...)
	}
}

// Matcher scores transcriptions against a vocabulary. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	vocab     Vocabulary
	threshold float64
	metric    Metric
	tokenScan bool
}

// New returns a Matcher over [DefaultVocabulary] unless overridden.
func New(opts ...Option) (*Matcher, error) {
	m := &Matcher{
		vocab:     DefaultVocabulary(),
		threshold: DefaultThreshold,
		metric:    Levenshtein,
		tokenScan: true,
	}
	for _, o := range opts {
		o(m)
	}
	if m.threshold < 0 || m.threshold > 1 {
		return nil, fmt.Errorf("command: threshold %v outside [0, 1]", m.threshold)
	}
	if len(m.vocab) == 0 {
		return nil, fmt.Errorf("command: vocabulary is empty")
	}
	seen := make(map[string]bool, len(m.vocab))
	for i, e := range m.vocab {
		tok := stt.Normalize(e.Token)
		if tok == "" || strings.Contains(tok, " ") {
			return nil, fmt.Errorf("command: vocabulary token %q must be a single word", e.Token)
		}
		if seen[tok] {
			return nil, fmt.Errorf("command: duplicate vocabulary token %q", tok)
		}
		if !e.Direction.IsValid() {
			return nil, fmt.Errorf("command: token %q has invalid direction %d", tok, e.Direction)
		}
		seen[tok] = true
		m.vocab[i].Token = tok
	}
	return m, nil
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Vocabulary returns a copy of the vocabulary in match order.
func (m *Matcher) Vocabulary() Vocabulary { return append(Vocabulary(nil), m.vocab...) }

// Match normalises text and returns the best vocabulary token. Empty text
// yields a zero Match.
func (m *Matcher) Match(text string) Match {
	norm := stt.Normalize(text)
	if norm == "" {
		return Match{}
	}
	candidates := []string{norm}
	if m.tokenScan {
		if words := strings.Fields(norm); len(words) > 1 {
			candidates = append(candidates, words...)
		}
	}

	best := Match{Score: -1}
	for _, e := range m.vocab {
		score := 0.0
		for _, c := range candidates {
			score = max(score, m.metric.Similarity(c, e.Token))
		}
		if score > best.Score {
			best = Match{Token: e.Token, Direction: e.Direction, Score: score}
		}
	}
	best.OK = best.Score >= m.threshold
	return best
}
