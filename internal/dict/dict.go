// Package dict holds the punctuation dictionary used by the postprocess
// passes. A dictionary is built once and then only read, so every
// implementation here is safe for concurrent queries.
package dict

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrEmptyEntry is returned when an entry list contains an empty string.
	ErrEmptyEntry = errors.New("dict: empty entry")
	// ErrInvalidEntry is returned for an entry that is not valid UTF-8.
	ErrInvalidEntry = errors.New("dict: entry is not valid UTF-8")
	// ErrCorruptSnapshot is returned when a compiled trie fails validation.
	ErrCorruptSnapshot = errors.New("dict: corrupt snapshot")
)

func checkEntry(e string) error {
	if e == "" {
		return ErrEmptyEntry
	}
	if !utf8.ValidString(e) {
		return fmt.Errorf("%w: %q", ErrInvalidEntry, e)
	}
	return nil
}

// Dictionary answers the two questions the merge scan asks.
type Dictionary interface {
	// ExactMatch reports whether s is, in its entirety, an entry.
	ExactMatch(s string) bool
	// CanContinue reports whether some strictly longer entry starts with s.
	CanContinue(s string) bool
}

// Live reports whether s is an entry or a prefix of one. A string that is
// not live is a dead end: no extension of it can ever match.
func Live(d Dictionary, s string) bool {
	return d.ExactMatch(s) || d.CanContinue(s)
}

// Set is a hash based Dictionary: one map of entries and one of strict
// prefixes.
type Set struct {
	entries  map[string]struct{}
	prefixes map[string]struct{}
}

// NewSet builds a Set from entries. Duplicates are ignored; empty or invalid
// UTF-8 entries are rejected.
func NewSet(entries []string) (*Set, error) {
	s := &Set{
		entries:  make(map[string]struct{}, len(entries)),
		prefixes: make(map[string]struct{}),
	}
	for _, e := range entries {
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		s.entries[e] = struct{}{}
		runes := []rune(e)
		for i := 0; i < len(runes); i++ {
			s.prefixes[string(runes[:i])] = struct{}{}
		}
	}
	return s, nil
}

func (s *Set) ExactMatch(str string) bool {
	_, ok := s.entries[str]
	return ok
}

func (s *Set) CanContinue(str string) bool {
	_, ok := s.prefixes[str]
	return ok
}

// Len returns the number of distinct entries.
func (s *Set) Len() int {
	return len(s.entries)
}
