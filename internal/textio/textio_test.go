package textio

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindSentenceEnd(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"Empty", "", -1},
		{"NoEnd", "他说……", -1},
		{"FullStop", "好。走", len("好。")},
		{"ASCII", "ok! go", 3},
		{"Semicolon", "甲；乙", len("甲；")},
		{"FirstWins", "？！", len("？")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, FindSentenceEnd(tt.input))
		})
	}
}

func TestLineSegments(t *testing.T) {
	t.Run("ShortLineWhole", func(t *testing.T) {
		line := "他说。你好！再见"
		require.Equal(t, []string{line}, LineSegments(line))
	})

	t.Run("EmptyLine", func(t *testing.T) {
		require.Equal(t, []string{""}, LineSegments(""))
	})

	t.Run("LongLineCut", func(t *testing.T) {
		chunk := strings.Repeat("字", 9999) + "。"
		line := chunk + chunk + "尾"
		segs := LineSegments(line)
		require.Equal(t, []string{chunk, chunk, "尾"}, segs)
		require.Equal(t, line, strings.Join(segs, ""))
	})

	t.Run("LongLineEndsOnPunctuation", func(t *testing.T) {
		chunk := strings.Repeat("a", 10000) + "?"
		segs := LineSegments(chunk + chunk)
		require.Equal(t, []string{chunk, chunk}, segs)
	})

	t.Run("LongLineWithoutPunctuation", func(t *testing.T) {
		line := strings.Repeat("字", MaxLineLength)
		require.Equal(t, []string{line}, LineSegments(line))
	})
}

func TestLineReader(t *testing.T) {
	long := strings.Repeat("字", MaxLineLength) + "。尾"
	input := "他_r 说_v\n\n" + long + "\ne\u0301_x\n"

	lr := NewLineReader(strings.NewReader(input), true)
	var got []string
	for {
		seg, ok := lr.Next()
		if !ok {
			break
		}
		got = append(got, seg)
	}
	require.NoError(t, lr.Err())
	require.Equal(t, 4, lr.Line())
	require.Equal(t, []string{
		"他_r 说_v",
		"",
		strings.Repeat("字", MaxLineLength) + "。",
		"尾",
		"\u00e9_x",
	}, got)
}

func TestOpenFilesWithCharset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	text := "他_r 说_v ……_w\n"

	w, err := OpenOutput(path, "GB18030")
	require.NoError(t, err)
	_, err = io.WriteString(w, text)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEqual(t, text, string(raw))

	r, err := OpenInput(path, "GB18030")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, text, string(decoded))
}

func TestOpenUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")

	w, err := OpenOutput(path, "")
	require.NoError(t, err)
	_, err = io.WriteString(w, "。")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := OpenInput(path, "UTF-8")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "。", string(data))
}

func TestOpenErrors(t *testing.T) {
	_, err := OpenInput(filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)

	_, err = OpenInput("-", "no-such-charset")
	require.Error(t, err)

	_, err = OpenOutput("-", "no-such-charset")
	require.Error(t, err)
}
