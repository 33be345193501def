package dict

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

const snapshotVersion = 1

// snapshot is the on-disk form of a compiled Trie.
type snapshot struct {
	Version  int     `cbor:"1,keyasint"`
	Alphabet []int32 `cbor:"2,keyasint"`
	Base     []int32 `cbor:"3,keyasint"`
	Check    []int32 `cbor:"4,keyasint"`
	Terminal []bool  `cbor:"5,keyasint"`
	Entries  int     `cbor:"6,keyasint"`
}

// Save writes the compiled trie as CBOR.
func (t *Trie) Save(w io.Writer) error {
	snap := snapshot{
		Version:  snapshotVersion,
		Alphabet: make([]int32, len(t.alphabet)),
		Base:     t.base,
		Check:    t.check,
		Terminal: t.terminal,
		Entries:  t.entries,
	}
	for i, r := range t.alphabet {
		snap.Alphabet[i] = int32(r)
	}
	return cbor.NewEncoder(w).Encode(snap)
}

// LoadTrie reads a trie written by Save and validates its arrays.
func LoadTrie(r io.Reader) (*Trie, error) {
	var snap snapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode trie snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, snap.Version)
	}

	n := len(snap.Base)
	if n <= rootState || len(snap.Check) != n || len(snap.Terminal) != n {
		return nil, fmt.Errorf("%w: array lengths %d/%d/%d", ErrCorruptSnapshot, n, len(snap.Check), len(snap.Terminal))
	}
	for i := 0; i < n; i++ {
		if snap.Base[i] < 0 || snap.Check[i] < 0 || int(snap.Check[i]) >= n {
			return nil, fmt.Errorf("%w: slot %d out of range", ErrCorruptSnapshot, i)
		}
	}

	codes := make(map[rune]int32, len(snap.Alphabet))
	alphabet := make([]rune, len(snap.Alphabet))
	for i, v := range snap.Alphabet {
		r := rune(v)
		if _, dup := codes[r]; dup {
			return nil, fmt.Errorf("%w: duplicate rune %q", ErrCorruptSnapshot, r)
		}
		codes[r] = int32(i + 1)
		alphabet[i] = r
	}

	return &Trie{
		base:     snap.Base,
		check:    snap.Check,
		terminal: snap.Terminal,
		alphabet: alphabet,
		codes:    codes,
		entries:  snap.Entries,
	}, nil
}
