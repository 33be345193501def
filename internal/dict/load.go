package dict

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SnapshotExt marks files holding a compiled trie rather than an entry list.
const SnapshotExt = ".cbor"

// LoadEntries reads one entry per line. Surrounding whitespace is trimmed and
// blank lines are skipped.
func LoadEntries(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries, scanner.Err()
}

// Open loads a dictionary from path: a compiled snapshot when the file ends
// in SnapshotExt, an entry list otherwise.
func Open(path string) (*Trie, error) {
	var (
		t   *Trie
		err error
	)
	if strings.EqualFold(filepath.Ext(path), SnapshotExt) {
		t, err = openSnapshot(path)
	} else {
		var entries []string
		entries, err = LoadEntries(path)
		if err == nil {
			t, err = Build(entries)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load punctuation dictionary %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("entries", t.Len()).
		Int("states", t.NStates()).
		Msg("Loaded punctuation dictionary")
	return t, nil
}

func openSnapshot(path string) (*Trie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return LoadTrie(bufio.NewReader(file))
}

// Compile builds the entry list at src and writes the snapshot to dst.
func Compile(src, dst string) (*Trie, error) {
	entries, err := LoadEntries(src)
	if err != nil {
		return nil, err
	}
	t, err := Build(entries)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(out)
	if err := t.Save(w); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return nil, err
	}
	return t, out.Close()
}
