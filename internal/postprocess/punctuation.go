package postprocess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/23skdu/longbow-quill/internal/dict"
	"github.com/23skdu/longbow-quill/internal/segment"
)

// ErrNilToken is returned when a sentence holds a nil token. It signals an
// upstream bug, not an unmatched word.
var ErrNilToken = errors.New("postprocess: nil token in sentence")

// PunctuationPass merges runs of tokens that together spell a dictionary
// punctuation sequence ("…" "…" -> "……") into one token tagged
// segment.PunctuationTag.
type PunctuationPass struct {
	dict dict.Dictionary
}

// NewPunctuationPass creates the pass. A nil dictionary disables it.
func NewPunctuationPass(d dict.Dictionary) *PunctuationPass {
	return &PunctuationPass{dict: d}
}

// Enabled reports whether a dictionary is loaded.
func (p *PunctuationPass) Enabled() bool {
	return p != nil && p.dict != nil
}

func (p *PunctuationPass) Name() string { return "punctuation" }

// settled reports whether word is left alone by the scan: it is already a
// whole entry, or no entry starts with it. Empty words start nothing.
func (p *PunctuationPass) settled(word string) bool {
	return word == "" || p.dict.ExactMatch(word) || !p.dict.CanContinue(word)
}

// Process rewrites sentence in place.
//
// Tokens that are already entries, or that no entry starts with, are kept as
// they are. From every other token candidates are built by appending the
// following words one at a time until the text becomes a dead end. The
// candidates are then scanned from the longest down, passing over every one
// that can still continue; the first that cannot marks the end of the merge.
// When none qualifies the fragment alone is tagged as punctuation.
func (p *PunctuationPass) Process(sentence *segment.Sentence) error {
	if !p.Enabled() || sentence == nil || len(*sentence) == 0 {
		return nil
	}
	s := *sentence
	for i, tok := range s {
		if tok == nil {
			return fmt.Errorf("token %d: %w", i, ErrNilToken)
		}
	}

	var (
		candidates []string
		sb         strings.Builder
		merges     int
		absorbed   int
		tagged     int
	)
	// Survivors are compacted into the front of s; the write index never
	// passes the read index.
	out := s[:0]
	for i := 0; i < len(s); {
		tok := s[i]
		if p.settled(tok.Word) {
			out = append(out, tok)
			i++
			continue
		}

		candidates = candidates[:0]
		sb.Reset()
		sb.WriteString(tok.Word)
		for j := i + 1; j < len(s); j++ {
			sb.WriteString(s[j].Word)
			cand := sb.String()
			if !dict.Live(p.dict, cand) {
				break
			}
			candidates = append(candidates, cand)
		}

		k := len(candidates) - 1
		for k >= 0 && p.dict.CanContinue(candidates[k]) {
			k--
		}

		tok.Tag = segment.PunctuationTag
		if k >= 0 {
			// candidates[k] spans tokens i..i+k+1.
			tok.Word = candidates[k]
			merges++
			absorbed += k + 1
			i += k + 2
		} else {
			tagged++
			i++
		}
		out = append(out, tok)
	}
	clear(s[len(out):])

	*sentence = out
	sentencesProcessed.Inc()
	if merges > 0 {
		punctuationMerges.Add(float64(merges))
		tokensAbsorbed.Add(float64(absorbed))
	}
	if tagged > 0 {
		punctuationTagged.Add(float64(tagged))
	}
	return nil
}
