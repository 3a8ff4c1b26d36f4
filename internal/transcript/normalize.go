// Package transcript accumulates recognizer segments into answer text and
// normalizes it for storage and scoring.
package transcript

import "strings"

// Options controls transcript normalization.
type Options struct {
	CapitalizeSentences bool
}

// Normalize collapses whitespace and optionally applies sentence casing.
// Blank input yields the empty string.
func Normalize(text string, opts Options) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return ""
	}
	if opts.CapitalizeSentences {
		normalized = capitalizeStandalonePronounI(capitalizeSentenceStarts(normalized))
	}
	return normalized
}

// Join normalizes segments as one space-separated transcript.
func Join(segments []string, opts Options) string {
	return Normalize(strings.Join(segments, " "), opts)
}

// Words splits a transcript into lowercase words with surrounding punctuation removed.
func Words(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"()[]{}…")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
