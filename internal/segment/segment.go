package segment

import (
	"strings"
)

// PunctuationTag is the tag assigned to punctuation tokens.
const PunctuationTag = "w"

// DefaultSeparator joins a word and its tag in the text format ("他_r").
const DefaultSeparator = '_'

// Token is a single tagged word produced by the upstream tagger.
type Token struct {
	Word string `cbor:"word" json:"word"`
	Tag  string `cbor:"tag" json:"tag"`
}

// Sentence is the ordered list of tokens for one tokenized unit.
// Postprocess passes rewrite it in place.
type Sentence []*Token

// NewSentence builds a sentence from parallel word and tag slices.
// Missing tags are left empty.
func NewSentence(words []string, tags []string) Sentence {
	s := make(Sentence, len(words))
	for i, w := range words {
		tok := &Token{Word: w}
		if i < len(tags) {
			tok.Tag = tags[i]
		}
		s[i] = tok
	}
	return s
}

// Words returns the word of every token.
func (s Sentence) Words() []string {
	words := make([]string, len(s))
	for i, tok := range s {
		words[i] = tok.Word
	}
	return words
}

// Tags returns the tag of every token.
func (s Sentence) Tags() []string {
	tags := make([]string, len(s))
	for i, tok := range s {
		tags[i] = tok.Tag
	}
	return tags
}

// Text concatenates all words without separators.
func (s Sentence) Text() string {
	var sb strings.Builder
	for _, tok := range s {
		sb.WriteString(tok.Word)
	}
	return sb.String()
}

// Clone returns a deep copy so the original survives in-place passes.
func (s Sentence) Clone() Sentence {
	if s == nil {
		return nil
	}
	out := make(Sentence, len(s))
	for i, tok := range s {
		if tok == nil {
			continue
		}
		cp := *tok
		out[i] = &cp
	}
	return out
}

// Format renders the sentence as "word<sep>tag" items joined by spaces.
// Tokens without a tag are written as the bare word.
func (s Sentence) Format(sep rune) string {
	var sb strings.Builder
	for i, tok := range s {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Word)
		if tok.Tag != "" {
			sb.WriteRune(sep)
			sb.WriteString(tok.Tag)
		}
	}
	return sb.String()
}

// String formats with the default separator.
func (s Sentence) String() string {
	return s.Format(DefaultSeparator)
}

// Parse reads a tagged line such as "他_r 说_v …_w". Items are split on
// whitespace; the tag follows the last separator in each item. Items without
// a separator become untagged tokens.
func Parse(line string, sep rune) Sentence {
	fields := strings.Fields(line)
	s := make(Sentence, 0, len(fields))
	for _, f := range fields {
		idx := strings.LastIndex(f, string(sep))
		// A leading separator belongs to the word: "_" stays untagged, "__w" is ("_", "w").
		if idx <= 0 {
			s = append(s, &Token{Word: f})
			continue
		}
		s = append(s, &Token{Word: f[:idx], Tag: f[idx+len(string(sep)):]})
	}
	return s
}
