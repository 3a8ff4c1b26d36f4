package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	pronounIPattern = regexp.MustCompile(`\bi(?:['’](?:m|d|ll|ve|re|s))?\b`)

	// keepLowercase lists abbreviations that stay lowercase at sentence starts.
	keepLowercase = map[string]struct{}{
		"e.g": {},
		"i.e": {},
		"etc": {},
		"vs":  {},
	}

	// nonTerminal lists abbreviations whose trailing period does not end a sentence.
	nonTerminal = map[string]struct{}{
		"e.g":    {},
		"i.e":    {},
		"cf":     {},
		"dr":     {},
		"mr":     {},
		"mrs":    {},
		"ms":     {},
		"prof":   {},
		"approx": {},
	}
)

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	var out strings.Builder
	out.Grow(len(text))

	capitalize := true
	for i, r := range runes {
		if capitalize && unicode.IsLetter(r) {
			if _, keep := keepLowercase[tokenAt(runes, i)]; !keep {
				r = unicode.ToUpper(r)
			}
			capitalize = false
		} else if capitalize && unicode.IsDigit(r) {
			capitalize = false
		}
		out.WriteRune(r)

		switch r {
		case '!', '?':
			capitalize = true
		case '.':
			capitalize = endsSentence(runes, i)
		}
	}
	return out.String()
}

// endsSentence reports whether the period at idx closes a sentence.
func endsSentence(runes []rune, idx int) bool {
	if idx+1 < len(runes) && !unicode.IsSpace(runes[idx+1]) {
		// 3.5 or e.g
		return false
	}
	start := idx
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	token := strings.ToLower(strings.Trim(string(runes[start:idx]), "."))
	_, abbr := nonTerminal[token]
	return !abbr
}

// tokenAt returns the lowercase word starting at idx without trailing periods.
func tokenAt(runes []rune, idx int) string {
	end := idx
	for end < len(runes) && (unicode.IsLetter(runes[end]) || runes[end] == '.') {
		end++
	}
	return strings.ToLower(strings.TrimRight(string(runes[idx:end]), "."))
}

func capitalizeStandalonePronounI(text string) string {
	matches := pronounIPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		out.WriteString(text[last:start])
		if partOfAbbreviation(text, start, end) {
			out.WriteString(text[start:end])
		} else {
			out.WriteString("I" + text[start+1:end])
		}
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

// partOfAbbreviation reports whether the match sits inside a dotted token like i.e.
func partOfAbbreviation(text string, start, end int) bool {
	if end+1 < len(text) && text[end] == '.' && isASCIILetter(text[end+1]) {
		return true
	}
	return start > 1 && text[start-1] == '.' && isASCIILetter(text[start-2])
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
