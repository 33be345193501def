package segment

import (
	"math/rand"
	"strings"
)

var loremWords = []Token{
	{"我们", "r"}, {"他", "r"}, {"今天", "t"}, {"北京", "ns"}, {"大学", "n"},
	{"学习", "v"}, {"研究", "v"}, {"中文", "nz"}, {"分词", "n"}, {"系统", "n"},
	{"非常", "d"}, {"快", "a"}, {"的", "u"}, {"了", "u"}, {"和", "c"},
	{"在", "p"}, {"说", "v"}, {"好", "a"}, {"一个", "m"}, {"问题", "n"},
}

// Tagger output splits runs like these into single-rune tokens.
var loremPunctuation = [][]string{
	{"，"}, {"、"}, {"…", "…"}, {"—", "—"}, {"！", "？"}, {"。"},
}

// GenerateLorem returns n tagged lines of filler text. Punctuation runs are
// emitted one rune per token with tag "x", the way a tagger without a
// punctuation dictionary leaves them. The same seed yields the same lines.
func GenerateLorem(n int, seed int64) []string {
	r := rand.New(rand.NewSource(seed))
	result := make([]string, n)

	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.Reset()
		clauses := 2 + r.Intn(4)
		for j := 0; j < clauses; j++ {
			words := 3 + r.Intn(8)
			for k := 0; k < words; k++ {
				tok := loremWords[r.Intn(len(loremWords))]
				writeItem(&sb, tok.Word, tok.Tag)
			}
			for _, p := range loremPunctuation[r.Intn(len(loremPunctuation))] {
				writeItem(&sb, p, "x")
			}
		}
		result[i] = sb.String()
	}
	return result
}

func writeItem(sb *strings.Builder, word, tag string) {
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(word)
	sb.WriteRune(DefaultSeparator)
	sb.WriteString(tag)
}
