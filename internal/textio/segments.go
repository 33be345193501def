package textio

import (
	"unicode/utf8"
)

// MaxLineLength is the rune count at which a line is cut into segments.
const MaxLineLength = 20000

// IsSentenceEnd reports whether r ends a sentence: 。？！； and their ASCII
// forms ; ! ?.
func IsSentenceEnd(r rune) bool {
	switch r {
	case '。', '？', '！', '；', ';', '!', '?':
		return true
	}
	return false
}

// FindSentenceEnd returns the byte offset just past the first sentence
// ending rune in s, or -1.
func FindSentenceEnd(s string) int {
	for i, r := range s {
		if IsSentenceEnd(r) {
			return i + utf8.RuneLen(r)
		}
	}
	return -1
}

// LineSegments splits a line that is too long for one pass. Lines shorter
// than MaxLineLength runes come back whole; longer ones are cut after every
// sentence ending rune, so each segment but the last ends with one.
func LineSegments(line string) []string {
	if utf8.RuneCountInString(line) < MaxLineLength {
		return []string{line}
	}
	var segments []string
	rest := line
	for rest != "" {
		end := FindSentenceEnd(rest)
		if end < 0 {
			segments = append(segments, rest)
			break
		}
		segments = append(segments, rest[:end])
		rest = rest[end:]
	}
	return segments
}
