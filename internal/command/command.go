// Package command maps transcribed text to a directional command.
//
// A [Matcher] scores the normalised transcription against every token of a
// fixed [Vocabulary] with a normalised string similarity in [0, 1] and
// accepts the best token when its score reaches the threshold. The default
// metric is the Levenshtein ratio 1 - lev(a, b) / max(len(a), len(b)), so
// "rght" scores 0.8 against "right". Jaro-Winkler, as used elsewhere for
// name matching, is available as an alternative.
//
// Multi-word transcriptions ("go left") are also scored word by word, and
// the best per-token score wins. Ties are resolved in vocabulary order.
package command

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voicesteer/pkg/direction"
)

// DefaultThreshold is the minimum score for a match to be accepted.
const DefaultThreshold = 0.7

// Entry binds a spoken token to the direction it commands.
type Entry struct {
	Token     string
	Direction direction.Direction
}

// Vocabulary is the ordered list of recognised tokens. Order matters: on a
// tie the earlier entry wins.
type Vocabulary []Entry

// DefaultVocabulary returns up, down, left, right in that order.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		{Token: "up", Direction: direction.Up},
		{Token: "down", Direction: direction.Down},
		{Token: "left", Direction: direction.Left},
		{Token: "right", Direction: direction.Right},
	}
}

// Tokens returns the vocabulary words in order.
func (v Vocabulary) Tokens() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Token
	}
	return out
}

// Metric selects the similarity function.
type Metric int

const (
	// Levenshtein is 1 - editDistance / max(runeLen).
	Levenshtein Metric = iota
	// JaroWinkler is matchr's Jaro-Winkler similarity.
	JaroWinkler
	// Phonetic compares Double Metaphone codes with the Levenshtein ratio
	// and never scores below the plain Levenshtein ratio of the spellings,
	// so homophones such as "rite" and "right" score 1.
	Phonetic
)

// String returns the config name of the metric.
func (m Metric) String() string {
	switch m {
	case Levenshtein:
		return "levenshtein"
	case JaroWinkler:
		return "jaro-winkler"
	case Phonetic:
		return "phonetic"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric is the inverse of [Metric.String]. The empty string selects
// Levenshtein.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "levenshtein":
		return Levenshtein, nil
	case "jaro-winkler", "jarowinkler":
		return JaroWinkler, nil
	case "phonetic", "metaphone":
		return Phonetic, nil
	default:
		return 0, fmt.Errorf("command: unknown similarity metric %q", s)
	}
}

// Similarity returns the score of a against b under m. Identical strings
// score 1 and two empty strings score 0.
func (m Metric) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	switch m {
	case JaroWinkler:
		return matchr.JaroWinkler(a, b, false)
	case Phonetic:
		return max(levenshteinRatio(a, b), metaphoneRatio(a, b))
	default:
		return levenshteinRatio(a, b)
	}
}

func levenshteinRatio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
}

// metaphoneRatio is the best Levenshtein ratio over the primary and
// secondary Double Metaphone codes of a and b.
func metaphoneRatio(a, b string) float64 {
	var best float64
	for _, ca := range metaphoneCodes(a) {
		for _, cb := range metaphoneCodes(b) {
			best = max(best, levenshteinRatio(ca, cb))
		}
	}
	return best
}

func metaphoneCodes(s string) []string {
	p, sec := matchr.DoubleMetaphone(s)
	codes := make([]string, 0, 2)
	if p != "" {
		codes = append(codes, p)
	}
	if sec != "" && sec != p {
		codes = append(codes, sec)
	}
	return codes
}

// Match is the outcome of matching one transcription.
type Match struct {
	// Token is the best-scoring vocabulary token, empty when the text was
	// empty.
	Token string

	// Direction is the command bound to Token. Only meaningful when OK.
	Direction direction.Direction

	// Score is the best similarity found.
	Score float64

	// OK reports whether Score reached the threshold.
	OK bool
}
