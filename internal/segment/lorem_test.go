package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLorem(t *testing.T) {
	for _, count := range []int{1, 5, 10} {
		lines := GenerateLorem(count, 42)
		require.Len(t, lines, count)
		for _, line := range lines {
			s := Parse(line, DefaultSeparator)
			require.NotEmpty(t, s)
			for _, tok := range s {
				assert.NotEmpty(t, tok.Tag, "line %q", line)
			}
			assert.Equal(t, line, s.Format(DefaultSeparator))
		}
	}

	assert.Equal(t, GenerateLorem(3, 7), GenerateLorem(3, 7))
}

func TestGenerateLorem_Zero(t *testing.T) {
	assert.Empty(t, GenerateLorem(0, 1))
}
